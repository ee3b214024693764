//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package halfgates

import (
	"github.com/rivergate/mpcvm/ot"
	"github.com/rivergate/mpcvm/p2p"
)

// Evaluator is the evaluator-role half-gates backend. It implements
// backend.Backend[ot.Label].
type Evaluator struct {
	conn *p2p.Conn

	constants [2]ot.Label
	mitccrh   *ot.MITCCRH
	prg       *sharedPRG

	globalID uint64
}

// NewEvaluator mirrors the garbler's handshake of §4.4: it draws the
// same public_constants from the same deterministic fix-key PRG, then
// receives start_point and input_seed over conn.
func NewEvaluator(conn *p2p.Conn) (*Evaluator, error) {
	fk := newFixKeyPRG()
	r0, r1 := publicConstantsFrom(fk)

	var data ot.LabelData
	var startPoint ot.Label
	if err := conn.ReceiveLabel(&startPoint, &data); err != nil {
		return nil, err
	}
	mitccrh := ot.NewMITCCRH(startPoint, ksBatchN)

	var inputSeed ot.Label
	if err := conn.ReceiveLabel(&inputSeed, &data); err != nil {
		return nil, err
	}
	prg, err := newSharedPRG(inputSeed)
	if err != nil {
		return nil, err
	}

	return &Evaluator{
		conn:      conn,
		constants: [2]ot.Label{r0, r1},
		mitccrh:   mitccrh,
		prg:       prg,
	}, nil
}

// Zero implements backend.Backend.
func (e *Evaluator) Zero(out *ot.Label) { *out = e.constants[0] }

// One implements backend.Backend.
func (e *Evaluator) One(out *ot.Label) { *out = e.constants[1] }

// Copy implements backend.Backend.
func (e *Evaluator) Copy(out, a *ot.Label) { *out = *a }

// Not implements backend.Backend.
func (e *Evaluator) Not(out, a *ot.Label) {
	l := *a
	l.Xor(e.constants[1])
	*out = l
}

// Xor implements backend.Backend.
func (e *Evaluator) Xor(out, a, b *ot.Label) {
	l := *a
	l.Xor(*b)
	*out = l
}

// Xnor implements backend.Backend.
func (e *Evaluator) Xnor(out, a, b *ot.Label) {
	l := *a
	l.Xor(*b)
	l.Xor(e.constants[1])
	*out = l
}

// And implements the evaluator's half-gates AND gate of §4.4.
func (e *Evaluator) And(out, a, b *ot.Label) error {
	var d0, d1 ot.LabelData
	if err := e.conn.ReceiveRaw(d0[:]); err != nil {
		return err
	}
	if err := e.conn.ReceiveRaw(d1[:]); err != nil {
		return err
	}
	var table0, table1 ot.Label
	table0.SetData(&d0)
	table1.SetData(&d1)

	sa := lsb(*a)
	sb := lsb(*b)

	h := []ot.Label{*a, *b}
	e.mitccrh.Hash(h, 1, 2)

	w := h[0]
	w.Xor(h[1])
	if sa {
		w.Xor(table0)
	}
	if sb {
		w.Xor(table1)
		w.Xor(*a)
	}

	*out = w
	e.globalID++
	return nil
}

// Input implements the evaluator's input gate of §4.4: the evaluator
// has no input bits in this simplified protocol, so it simply draws
// len(buf) labels from shared_prg as its view of the garbler's input.
func (e *Evaluator) Input(buf []ot.Label) error {
	for i := range buf {
		buf[i] = e.prg.label()
	}
	return nil
}

// Output implements backend.Backend: writes each wire's selector bit to
// the connection's write buffer for the garbler, in declaration order;
// Teardown flushes what is still buffered.
func (e *Evaluator) Output(buf []ot.Label) error {
	for _, l := range buf {
		var b byte
		if lsb(l) {
			b = 1
		}
		if err := e.conn.SendRaw([]byte{b}); err != nil {
			return err
		}
	}
	return nil
}

// Teardown flushes any buffered output-bit writes to the garbler.
func (e *Evaluator) Teardown() error {
	return e.conn.Flush()
}
