//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package halfgates

import (
	"github.com/rivergate/mpcvm/bitio"
	"github.com/rivergate/mpcvm/env"
	"github.com/rivergate/mpcvm/ot"
	"github.com/rivergate/mpcvm/p2p"
)

// Garbler is the garbler-role half-gates backend. It implements
// backend.Backend[ot.Label].
type Garbler struct {
	conn *p2p.Conn
	in   bitio.BitReader

	delta     ot.Label
	constants [2]ot.Label
	mitccrh   *ot.MITCCRH
	prg       *sharedPRG

	globalID uint64

	// outputLSBs accumulates the garbler's selector bit for each
	// output wire, in declaration order, for reconciliation at
	// Teardown.
	outputLSBs []byte
}

// NewGarbler runs the garbler side of the handshake of §4.4 over conn
// and returns a ready-to-use backend. in supplies the garbler's
// plaintext input bits.
func NewGarbler(conn *p2p.Conn, cfg *env.Config, in bitio.BitReader) (*Garbler, error) {
	rnd := cfg.GetRandom()

	delta, err := ot.NewLabel(rnd)
	if err != nil {
		return nil, err
	}
	setLSB(&delta, true)

	fk := newFixKeyPRG()
	r0, r1 := publicConstantsFrom(fk)
	c1 := r1
	c1.Xor(delta)

	startPoint, err := ot.NewLabel(rnd)
	if err != nil {
		return nil, err
	}
	mitccrh := ot.NewMITCCRH(startPoint, ksBatchN)

	var data ot.LabelData
	if err := conn.SendLabel(startPoint, &data); err != nil {
		return nil, err
	}

	inputSeed, err := ot.NewLabel(rnd)
	if err != nil {
		return nil, err
	}
	if err := conn.SendLabel(inputSeed, &data); err != nil {
		return nil, err
	}
	// The flush after sending input_seed is load-bearing: without it
	// the evaluator blocks waiting for bytes the garbler never sent.
	if err := conn.Flush(); err != nil {
		return nil, err
	}

	prg, err := newSharedPRG(inputSeed)
	if err != nil {
		return nil, err
	}

	return &Garbler{
		conn:      conn,
		in:        in,
		delta:     delta,
		constants: [2]ot.Label{r0, c1},
		mitccrh:   mitccrh,
		prg:       prg,
	}, nil
}

// Zero implements backend.Backend.
func (g *Garbler) Zero(out *ot.Label) { *out = g.constants[0] }

// One implements backend.Backend.
func (g *Garbler) One(out *ot.Label) { *out = g.constants[1] }

// Copy implements backend.Backend.
func (g *Garbler) Copy(out, a *ot.Label) { *out = *a }

// Not implements backend.Backend: NOT(a) = a XOR public_constants[1].
func (g *Garbler) Not(out, a *ot.Label) {
	l := *a
	l.Xor(g.constants[1])
	*out = l
}

// Xor implements backend.Backend.
func (g *Garbler) Xor(out, a, b *ot.Label) {
	l := *a
	l.Xor(*b)
	*out = l
}

// Xnor implements backend.Backend: XNOR(a,b) = (a XOR b) XOR
// public_constants[1].
func (g *Garbler) Xnor(out, a, b *ot.Label) {
	l := *a
	l.Xor(*b)
	l.Xor(g.constants[1])
	*out = l
}

// And implements the garbler's half-gates AND gate of §4.4.
func (g *Garbler) And(out, a, b *ot.Label) error {
	pa := lsb(*a)
	pb := lsb(*b)

	aXorDelta := *a
	aXorDelta.Xor(g.delta)
	bXorDelta := *b
	bXorDelta.Xor(g.delta)

	h := []ot.Label{*a, aXorDelta, *b, bXorDelta}
	g.mitccrh.Hash(h, 1, 4)

	table0 := h[0]
	table0.Xor(h[1])
	if pb {
		table0.Xor(g.delta)
	}

	w0 := h[0]
	if pa {
		w0.Xor(table0)
	}

	tmp := h[2]
	tmp.Xor(h[3])

	table1 := tmp
	table1.Xor(*a)

	w0.Xor(h[2])
	if pb {
		w0.Xor(tmp)
	}

	var d0, d1 ot.LabelData
	if err := g.conn.SendRaw(table0.Bytes(&d0)); err != nil {
		return err
	}
	if err := g.conn.SendRaw(table1.Bytes(&d1)); err != nil {
		return err
	}

	*out = w0
	g.globalID++
	return nil
}

// Input implements the garbler's input gate of §4.4: draw len(buf)
// random labels via shared_prg and, for each input bit read from the
// bit-file, XOR delta into the label when the bit is 1.
func (g *Garbler) Input(buf []ot.Label) error {
	for i := range buf {
		label := g.prg.label()
		bit, err := g.in.ReadBit()
		if err != nil {
			return err
		}
		if bit != 0 {
			label.Xor(g.delta)
		}
		buf[i] = label
	}
	return nil
}

// Output implements backend.Backend: records this wire's selector bit
// for reconciliation at Teardown.
func (g *Garbler) Output(buf []ot.Label) error {
	for _, l := range buf {
		if lsb(l) {
			g.outputLSBs = append(g.outputLSBs, 1)
		} else {
			g.outputLSBs = append(g.outputLSBs, 0)
		}
	}
	return nil
}

// Teardown flushes any buffered writes, reads the evaluator's reported
// output selector bits, reconstructs each plaintext output bit as
// garbler_lsb XOR evaluator_lsb, and writes the result to out in
// declaration order.
func (g *Garbler) Teardown(out bitio.BitWriter) error {
	if err := g.conn.Flush(); err != nil {
		return err
	}
	peer := make([]byte, len(g.outputLSBs))
	if err := g.conn.ReceiveRaw(peer); err != nil {
		return err
	}
	for i, glsb := range g.outputLSBs {
		bit := glsb ^ (peer[i] & 1)
		if err := out.WriteBit(bit); err != nil {
			return err
		}
	}
	return nil
}
