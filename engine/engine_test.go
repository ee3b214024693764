//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package engine

import (
	"encoding/binary"
	"testing"

	"github.com/rivergate/mpcvm/backend"
	"github.com/rivergate/mpcvm/bitio"
	"github.com/rivergate/mpcvm/instruction"
	"github.com/rivergate/mpcvm/memory"
)

const testWidth = 8

func newTestEngine() (*Engine[backend.Bit], *memory.Arena[backend.Bit]) {
	mem := memory.Allocate[backend.Bit](8, 1)
	be := backend.NewPlaintext(nil, nil)
	return New(mem, be), mem
}

func setUint(mem *memory.Arena[backend.Bit], addr memory.Addr, width int, v uint64) {
	span := mem.Span(addr, width)
	for i := range span {
		if (v>>uint(i))&1 != 0 {
			span[i] = 1
		} else {
			span[i] = 0
		}
	}
}

func getUint(mem *memory.Arena[backend.Bit], addr memory.Addr, width int) uint64 {
	span := mem.Span(addr, width)
	var v uint64
	for i, b := range span {
		if b != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

func mask(v uint64, width int) uint64 {
	if width >= 64 {
		return v
	}
	return v & ((1 << uint(width)) - 1)
}

func TestEngineIntAdd(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 12)
	setUint(mem, 8, testWidth, 9)

	err := eng.Execute(instruction.Instruction{
		Op: instruction.IntAdd, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != mask(21, testWidth) {
		t.Errorf("IntAdd(12,9) = %d, expected 21", got)
	}
}

// TestEngineIntSub exercises the concrete E1 scenario from the
// specification (width=8, a=200, b=100 -> 100).
func TestEngineIntSub(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 200)
	setUint(mem, 8, testWidth, 100)

	err := eng.Execute(instruction.Instruction{
		Op: instruction.IntSub, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != 100 {
		t.Errorf("IntSub(200,100) = %d, expected 100", got)
	}
}

func TestEngineIntIncrementDecrement(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 41)

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.IntIncrement, Output: 8, Input1: 0, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 8, testWidth); got != 42 {
		t.Errorf("IntIncrement(41) = %d, expected 42", got)
	}

	// Decrement in place, aliasing out with a.
	if err := eng.Execute(instruction.Instruction{
		Op: instruction.IntDecrement, Output: 8, Input1: 8, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 8, testWidth); got != 41 {
		t.Errorf("IntDecrement(42) = %d, expected 41", got)
	}
}

func TestEngineIntMultiply(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 12)
	setUint(mem, 8, testWidth, 11)

	err := eng.Execute(instruction.Instruction{
		Op: instruction.IntMultiply, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != mask(132, testWidth) {
		t.Errorf("IntMultiply(12,11) = %d, expected 132", got)
	}
}

func TestEngineIntMultiplyOverflowTruncates(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 200)
	setUint(mem, 8, testWidth, 200)

	err := eng.Execute(instruction.Instruction{
		Op: instruction.IntMultiply, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != mask(200*200, testWidth) {
		t.Errorf("IntMultiply(200,200) = %d, expected %d", got, mask(200*200, testWidth))
	}
}

func TestEngineIntLess(t *testing.T) {
	eng, mem := newTestEngine()
	cases := []struct{ a, b, want uint64 }{
		{3, 5, 1},
		{5, 3, 0},
		{4, 4, 0},
	}
	for _, c := range cases {
		setUint(mem, 0, testWidth, c.a)
		setUint(mem, 8, testWidth, c.b)
		if err := eng.Execute(instruction.Instruction{
			Op: instruction.IntLess, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
		}); err != nil {
			t.Fatal(err)
		}
		if got := getUint(mem, 16, 1); got != c.want {
			t.Errorf("IntLess(%d,%d) = %d, expected %d", c.a, c.b, got, c.want)
		}
	}
}

func TestEngineEqual(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 77)
	setUint(mem, 8, testWidth, 77)
	if err := eng.Execute(instruction.Instruction{
		Op: instruction.Equal, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, 1); got != 1 {
		t.Errorf("Equal(77,77) = %d, expected 1", got)
	}

	setUint(mem, 8, testWidth, 78)
	if err := eng.Execute(instruction.Instruction{
		Op: instruction.Equal, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, 1); got != 0 {
		t.Errorf("Equal(77,78) = %d, expected 0", got)
	}
}

func TestEngineIsZeroNonZero(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 0)

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.IsZero, Output: 8, Input1: 0, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 8, 1); got != 1 {
		t.Errorf("IsZero(0) = %d, expected 1", got)
	}

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.NonZero, Output: 8, Input1: 0, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 8, 1); got != 0 {
		t.Errorf("NonZero(0) = %d, expected 0", got)
	}

	setUint(mem, 0, testWidth, 5)
	if err := eng.Execute(instruction.Instruction{
		Op: instruction.IsZero, Output: 8, Input1: 0, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 8, 1); got != 0 {
		t.Errorf("IsZero(5) = %d, expected 0", got)
	}
}

func TestEngineBitwise(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 0b1100)
	setUint(mem, 8, testWidth, 0b1010)

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.BitAND, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != 0b1000 {
		t.Errorf("BitAND = %b, expected %b", got, 0b1000)
	}

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.BitOR, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != 0b1110 {
		t.Errorf("BitOR = %b, expected %b", got, 0b1110)
	}

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.BitXOR, Output: 16, Input1: 0, Input2: 8, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != 0b0110 {
		t.Errorf("BitXOR = %b, expected %b", got, 0b0110)
	}

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.BitNOT, Output: 16, Input1: 0, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != mask(^uint64(0b1100), testWidth) {
		t.Errorf("BitNOT = %b, expected %b", got, mask(^uint64(0b1100), testWidth))
	}
}

func TestEngineValueSelect(t *testing.T) {
	eng, mem := newTestEngine()
	setUint(mem, 0, testWidth, 11)
	setUint(mem, 8, testWidth, 22)

	setUint(mem, 24, 1, 0)
	if err := eng.Execute(instruction.Instruction{
		Op: instruction.ValueSelect, Output: 16, Input1: 0, Input2: 8, Input3: 24, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != 11 {
		t.Errorf("ValueSelect(s=0) = %d, expected 11", got)
	}

	setUint(mem, 24, 1, 1)
	if err := eng.Execute(instruction.Instruction{
		Op: instruction.ValueSelect, Output: 16, Input1: 0, Input2: 8, Input3: 24, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 16, testWidth); got != 22 {
		t.Errorf("ValueSelect(s=1) = %d, expected 22", got)
	}
}

func TestEngineCopyAndPublicConstant(t *testing.T) {
	eng, mem := newTestEngine()

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.PublicConstant, Output: 0, Constant: 200, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 0, testWidth); got != 200 {
		t.Errorf("PublicConstant = %d, expected 200", got)
	}

	if err := eng.Execute(instruction.Instruction{
		Op: instruction.Copy, Output: 8, Input1: 0, Width: testWidth,
	}); err != nil {
		t.Fatal(err)
	}
	if got := getUint(mem, 8, testWidth); got != 200 {
		t.Errorf("Copy = %d, expected 200", got)
	}
}

// TestEngineDecodedInputOutput exercises the real decode path (rather
// than a hand-built instruction.Instruction) for the no_args format,
// pinning that Input/Output carry their width through the wire and
// are not left as zero-length spans once decoded from a byte stream.
func TestEngineDecodedInputOutput(t *testing.T) {
	const width = 4

	var prog []byte
	appendHeader := func(op instruction.OpCode, output uint64) {
		prog = append(prog, byte(op))
		var outBuf [8]byte
		binary.LittleEndian.PutUint64(outBuf[:], output)
		prog = append(prog, outBuf[:]...)
	}
	appendWidth := func(w uint16) {
		var wBuf [2]byte
		binary.LittleEndian.PutUint16(wBuf[:], w)
		prog = append(prog, wBuf[:]...)
	}

	appendHeader(instruction.Input, 0)
	appendWidth(width)
	appendHeader(instruction.Output, 0)
	appendWidth(width)

	mem := memory.Allocate[backend.Bit](8, 1)
	var out bitio.SliceWriter
	be := backend.NewPlaintext(bitio.NewSliceReader([]byte{1, 0, 1, 1}), &out)
	eng := New(mem, be)

	for len(prog) > 0 {
		instr, n, err := instruction.Decode(prog)
		if err != nil {
			t.Fatal(err)
		}
		if instr.Width != width {
			t.Fatalf("decoded width = %d, expected %d", instr.Width, width)
		}
		if err := eng.Execute(instr); err != nil {
			t.Fatal(err)
		}
		prog = prog[n:]
	}

	want := []byte{1, 0, 1, 1}
	if len(out.Bits) != len(want) {
		t.Fatalf("output has %d bits, expected %d", len(out.Bits), len(want))
	}
	for i, b := range want {
		if out.Bits[i] != b {
			t.Errorf("output bit %d = %d, expected %d", i, out.Bits[i], b)
		}
	}
}

func TestEngineUnknownOpcode(t *testing.T) {
	eng, _ := newTestEngine()
	err := eng.Execute(instruction.Instruction{Op: instruction.Undefined})
	if err == nil {
		t.Fatal("expected error for Undefined opcode")
	}
}
