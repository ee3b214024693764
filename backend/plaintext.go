//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package backend

import "github.com/rivergate/mpcvm/bitio"

// Bit is the plaintext backend's wire representation: a single boolean
// value carried in a byte, per §3 ("for plaintext it is a single bit
// carried in a byte").
type Bit byte

// Plaintext is a Backend[Bit] that evaluates gates directly in the
// clear. It exists so the execution engine's opcode circuits (§4.3) can
// be exercised by property tests without any cryptography, the same
// role the teacher's Circuit.Compute plays for its gate-list evaluator.
type Plaintext struct {
	in  bitio.BitReader
	out bitio.BitWriter
}

// NewPlaintext creates a plaintext backend drawing input bits from in
// and writing output bits to out.
func NewPlaintext(in bitio.BitReader, out bitio.BitWriter) *Plaintext {
	return &Plaintext{in: in, out: out}
}

// Zero implements Backend.
func (p *Plaintext) Zero(out *Bit) { *out = 0 }

// One implements Backend.
func (p *Plaintext) One(out *Bit) { *out = 1 }

// Copy implements Backend.
func (p *Plaintext) Copy(out, a *Bit) { *out = *a }

// Not implements Backend.
func (p *Plaintext) Not(out, a *Bit) {
	if *a == 0 {
		*out = 1
	} else {
		*out = 0
	}
}

// Xor implements Backend.
func (p *Plaintext) Xor(out, a, b *Bit) { *out = *a ^ *b }

// Xnor implements Backend.
func (p *Plaintext) Xnor(out, a, b *Bit) {
	v := *a ^ *b
	if v == 0 {
		*out = 1
	} else {
		*out = 0
	}
}

// And implements Backend. It cannot fail for the plaintext backend, but
// returns error to satisfy the contract shared with half-gates.
func (p *Plaintext) And(out, a, b *Bit) error {
	*out = *a & *b
	return nil
}

// Input implements Backend, drawing len(buf) bits from the input
// bit-file.
func (p *Plaintext) Input(buf []Bit) error {
	for i := range buf {
		bit, err := p.in.ReadBit()
		if err != nil {
			return err
		}
		buf[i] = Bit(bit)
	}
	return nil
}

// Output implements Backend, writing buf's bits to the output bit-file
// in order.
func (p *Plaintext) Output(buf []Bit) error {
	for _, b := range buf {
		if err := p.out.WriteBit(byte(b)); err != nil {
			return err
		}
	}
	return nil
}
