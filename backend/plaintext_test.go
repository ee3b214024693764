//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package backend

import (
	"testing"

	"github.com/rivergate/mpcvm/bitio"
)

func TestPlaintextLinearGates(t *testing.T) {
	p := NewPlaintext(bitio.NewSliceReader(nil), nil)

	var zero, one, out Bit
	p.Zero(&zero)
	p.One(&one)

	if zero != 0 || one != 1 {
		t.Fatalf("Zero/One: got %v/%v", zero, one)
	}

	p.Not(&out, &zero)
	if out != 1 {
		t.Errorf("Not(0) = %v, expected 1", out)
	}

	p.Xor(&out, &one, &one)
	if out != 0 {
		t.Errorf("Xor(1,1) = %v, expected 0", out)
	}

	p.Xnor(&out, &zero, &one)
	if out != 0 {
		t.Errorf("Xnor(0,1) = %v, expected 0", out)
	}

	if err := p.And(&out, &one, &one); err != nil {
		t.Fatal(err)
	}
	if out != 1 {
		t.Errorf("And(1,1) = %v, expected 1", out)
	}
}

func TestPlaintextInputOutput(t *testing.T) {
	var w bitio.SliceWriter
	p := NewPlaintext(bitio.NewSliceReader([]byte{1, 0, 1, 1}), &w)

	buf := make([]Bit, 4)
	if err := p.Input(buf); err != nil {
		t.Fatal(err)
	}
	want := []Bit{1, 0, 1, 1}
	for i, b := range buf {
		if b != want[i] {
			t.Errorf("Input[%d] = %v, expected %v", i, b, want[i])
		}
	}

	if err := p.Output(buf); err != nil {
		t.Fatal(err)
	}
	if len(w.Bits) != 4 {
		t.Fatalf("Output wrote %d bits, expected 4", len(w.Bits))
	}
	for i, b := range w.Bits {
		if Bit(b) != want[i] {
			t.Errorf("Output[%d] = %v, expected %v", i, b, want[i])
		}
	}
}

func TestPlaintextInputExhausted(t *testing.T) {
	p := NewPlaintext(bitio.NewSliceReader([]byte{1}), nil)
	buf := make([]Bit, 2)
	if err := p.Input(buf); err == nil {
		t.Fatal("expected error reading past end of input")
	}
}
