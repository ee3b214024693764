//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/rivergate/mpcvm/bitio"
	"github.com/rivergate/mpcvm/engine"
	"github.com/rivergate/mpcvm/env"
	"github.com/rivergate/mpcvm/halfgates"
	"github.com/rivergate/mpcvm/instruction"
	"github.com/rivergate/mpcvm/memory"
	"github.com/rivergate/mpcvm/ot"
	"github.com/rivergate/mpcvm/p2p"
)

var (
	verbose = false
)

func main() {
	garbler := flag.Bool("g", false, "Garbler / Evaluator mode")
	addr := flag.String("addr", ":8080", "Garbler listen / evaluator dial address")
	program := flag.String("p", "", "Packed instruction program")
	input := flag.String("i", "", "Input bit file (garbler only; evaluator has no input bits)")
	output := flag.String("o", "", "Output bit file (default: stdout)")
	pageShift := flag.Uint("page-shift", 16, "Wire arena page shift")
	numPages := flag.Uint("pages", 1, "Wire arena page count")
	fVerbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	verbose = *fVerbose

	if *program == "" {
		fmt.Println("No program file specified (-p)")
		os.Exit(1)
	}
	prog, err := os.ReadFile(*program)
	if err != nil {
		log.Fatalf("reading program: %s", err)
	}

	var out bitio.BitWriter
	if *output == "" {
		out = bitio.NewByteWriter(os.Stdout)
	} else {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("creating output file: %s", err)
		}
		defer f.Close()
		bw := bufio.NewWriter(f)
		defer bw.Flush()
		out = bitio.NewByteWriter(bw)
	}

	if *garbler {
		err = runGarbler(*addr, prog, *input, out, *pageShift, *numPages)
	} else {
		err = runEvaluator(*addr, prog, out, *pageShift, *numPages)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func openInput(path string) (bitio.BitReader, error) {
	if path == "" {
		return bitio.NewSliceReader(nil), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return bitio.NewByteReader(bufio.NewReader(f)), nil
}

func runGarbler(addr string, prog []byte, inputPath string, out bitio.BitWriter, pageShift, numPages uint) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	fmt.Printf("Listening for connections at %s\n", addr)

	nc, err := ln.Accept()
	if err != nil {
		return err
	}
	defer nc.Close()
	fmt.Printf("New connection from %s\n", nc.RemoteAddr())

	conn := p2p.NewConn(nc)
	defer conn.Close()

	timing := engine.NewTiming()

	in, err := openInput(inputPath)
	if err != nil {
		return err
	}

	cfg := &env.Config{}
	gb, err := halfgates.NewGarbler(conn, cfg, in)
	if err != nil {
		return err
	}
	timing.Sample("Handshake", nil)

	mem := memory.Allocate[ot.Label](pageShift, numPages)
	eng := engine.New(mem, gb)

	if err := run(eng, prog); err != nil {
		return err
	}
	timing.Sample("Evaluate", nil)

	if err := gb.Teardown(out); err != nil {
		return err
	}
	timing.Sample("Teardown", nil)

	if verbose {
		timing.Print(conn.Stats)
	}
	return nil
}

func runEvaluator(addr string, prog []byte, out bitio.BitWriter, pageShift, numPages uint) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer nc.Close()

	conn := p2p.NewConn(nc)
	defer conn.Close()

	timing := engine.NewTiming()

	ev, err := halfgates.NewEvaluator(conn)
	if err != nil {
		return err
	}
	timing.Sample("Handshake", nil)

	mem := memory.Allocate[ot.Label](pageShift, numPages)
	eng := engine.New(mem, ev)

	if err := run(eng, prog); err != nil {
		return err
	}
	timing.Sample("Evaluate", nil)

	if err := ev.Teardown(); err != nil {
		return err
	}
	timing.Sample("Teardown", nil)

	if verbose {
		timing.Print(conn.Stats)
	}
	return nil
}

// run decodes and executes every packed instruction in prog in order.
func run[W any](eng *engine.Engine[W], prog []byte) error {
	for len(prog) > 0 {
		instr, n, err := instruction.Decode(prog)
		if err != nil {
			return err
		}
		if verbose {
			fmt.Printf("%v\n", instr.Op)
		}
		if err := eng.Execute(instr); err != nil {
			return err
		}
		prog = prog[n:]
	}
	return nil
}
