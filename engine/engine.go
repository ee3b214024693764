//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package engine implements opcode dispatch for the execution engine:
// it reads packed instructions, resolves their operands against wire
// memory, and synthesizes the multi-bit arithmetic/comparison circuits
// of §4.3 from a backend's gate primitives. No handler allocates wire
// values on the heap except intMultiply, which uses width-sized scratch
// slices for its partial products; all gate operations dispatch through the Backend
// contract so the same code runs unmodified over the plaintext and
// half-gates backends.
package engine

import (
	"fmt"

	"github.com/rivergate/mpcvm/backend"
	"github.com/rivergate/mpcvm/instruction"
	"github.com/rivergate/mpcvm/memory"
)

// Engine dispatches a packed-instruction stream against a wire-memory
// arena and a backend. W is the backend's wire representation.
type Engine[W any] struct {
	mem *memory.Arena[W]
	be  backend.Backend[W]
}

// New creates an Engine over mem using be as the gate backend.
func New[W any](mem *memory.Arena[W], be backend.Backend[W]) *Engine[W] {
	return &Engine[W]{mem: mem, be: be}
}

// Execute dispatches a single decoded instruction. Unknown opcodes are
// fatal per §7, reported as an error rather than aborting the process
// directly so the caller controls exit behavior.
func (e *Engine[W]) Execute(instr instruction.Instruction) error {
	mem := e.mem
	switch instr.Op {
	case instruction.Input:
		buf := mem.Span(memory.Addr(instr.Output), instr.Width)
		return e.be.Input(buf)

	case instruction.Output:
		buf := mem.Span(memory.Addr(instr.Output), instr.Width)
		return e.be.Output(buf)

	case instruction.PublicConstant:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		e.publicConstant(out, instr.Constant)
		return nil

	case instruction.Copy:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		for i := range out {
			e.be.Copy(&out[i], &a[i])
		}
		return nil

	case instruction.IntAdd:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		return e.intAdd(out, a, b)

	case instruction.IntSub:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		return e.intSub(out, a, b)

	case instruction.IntIncrement:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		return e.intIncrement(out, a)

	case instruction.IntDecrement:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		return e.intDecrement(out, a)

	case instruction.IntMultiply:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		return e.intMultiply(out, a, b)

	case instruction.IntLess:
		out := mem.Span(memory.Addr(instr.Output), 1)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		return e.intLess(out, a, b)

	case instruction.Equal:
		out := mem.Span(memory.Addr(instr.Output), 1)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		return e.equal(out, a, b)

	case instruction.IsZero:
		out := mem.Span(memory.Addr(instr.Output), 1)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		return e.isZeroNonZero(out, a, false)

	case instruction.NonZero:
		out := mem.Span(memory.Addr(instr.Output), 1)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		return e.isZeroNonZero(out, a, true)

	case instruction.BitNOT:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		for i := range out {
			e.be.Not(&out[i], &a[i])
		}
		return nil

	case instruction.BitAND:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		for i := range out {
			if err := e.be.And(&out[i], &a[i], &b[i]); err != nil {
				return err
			}
		}
		return nil

	case instruction.BitOR:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		return e.bitOr(out, a, b)

	case instruction.BitXOR:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		for i := range out {
			e.be.Xor(&out[i], &a[i], &b[i])
		}
		return nil

	case instruction.ValueSelect:
		out := mem.Span(memory.Addr(instr.Output), instr.Width)
		a := mem.Span(memory.Addr(instr.Input1), instr.Width)
		b := mem.Span(memory.Addr(instr.Input2), instr.Width)
		s := mem.Span(memory.Addr(instr.Input3), instr.Width)
		return e.valueSelect(out, a, b, s)

	default:
		return fmt.Errorf("engine: unknown opcode %v", instr.Op)
	}
}

func (e *Engine[W]) publicConstant(out []W, constant uint64) {
	for i := range out {
		if (constant>>uint(i))&1 != 0 {
			e.be.One(&out[i])
		} else {
			e.be.Zero(&out[i])
		}
	}
}

// intAdd implements the ripple-carry adder of §4.3. carry/borrow are
// computed from the *previous* iteration's t1/t2, per the design note
// in §9 — this must be reproduced precisely, not "cleaned up" into a
// textbook full adder, or garbled-table counts diverge between parties.
func (e *Engine[W]) intAdd(out, a, b []W) error {
	width := len(out)
	var carry, t1, t2, t3 W
	e.be.Zero(&carry)
	t1 = a[0]
	t2 = b[0]
	e.be.Xor(&out[0], &t1, &t2)
	for i := 1; i < width; i++ {
		if err := e.be.And(&t3, &t1, &t2); err != nil {
			return err
		}
		e.be.Xor(&carry, &carry, &t3)
		e.be.Xor(&t1, &a[i], &carry)
		e.be.Xor(&t2, &b[i], &carry)
		e.be.Xor(&out[i], &t1, &b[i])
	}
	return nil
}

// intSub implements the ripple-borrow subtractor, symmetric to intAdd:
// the borrow is computed from the previous iteration's t1/t2, with t1
// seeded as a[0] XOR b[0] so that the first borrow is (NOT a[0]) AND
// b[0]. The gate count is the same as intAdd's.
func (e *Engine[W]) intSub(out, a, b []W) error {
	width := len(out)
	var borrow, t1, t2, t3 W
	e.be.Zero(&borrow)
	e.be.Xor(&t1, &a[0], &b[0])
	t2 = b[0]
	out[0] = t1
	for i := 1; i < width; i++ {
		if err := e.be.And(&t3, &t1, &t2); err != nil {
			return err
		}
		e.be.Xor(&borrow, &borrow, &t3)
		e.be.Xor(&t1, &a[i], &b[i])
		e.be.Xor(&t2, &b[i], &borrow)
		e.be.Xor(&out[i], &t1, &borrow)
	}
	return nil
}

func (e *Engine[W]) intIncrement(out, a []W) error {
	width := len(out)
	var carry W
	carry = a[0]
	e.be.Not(&out[0], &a[0])
	if width == 1 {
		return nil
	}
	for i := 1; i < width-1; i++ {
		e.be.Xor(&out[i], &a[i], &carry)
		if err := e.be.And(&carry, &carry, &a[i]); err != nil {
			return err
		}
	}
	e.be.Xor(&out[width-1], &a[width-1], &carry)
	return nil
}

// intDecrement mirrors intIncrement. The second AND reads the
// just-written out[i], not a[i]; this ordering must be preserved
// because out may alias a (§9).
func (e *Engine[W]) intDecrement(out, a []W) error {
	width := len(out)
	var borrow W
	e.be.Not(&borrow, &a[0])
	out[0] = borrow
	if width == 1 {
		return nil
	}
	for i := 1; i < width-1; i++ {
		e.be.Xor(&out[i], &a[i], &borrow)
		if err := e.be.And(&borrow, &borrow, &out[i]); err != nil {
			return err
		}
	}
	e.be.Xor(&out[width-1], &a[width-1], &borrow)
	return nil
}

func (e *Engine[W]) intLess(out, a, b []W) error {
	width := len(a)
	var t1, t2, t3, r W
	e.be.Xor(&t1, &a[0], &b[0])
	if err := e.be.And(&r, &t1, &b[0]); err != nil {
		return err
	}
	for i := 1; i < width; i++ {
		e.be.Xor(&t1, &a[i], &b[i])
		e.be.Xor(&t2, &b[i], &r)
		if err := e.be.And(&t3, &t1, &t2); err != nil {
			return err
		}
		e.be.Xor(&r, &r, &t3)
	}
	out[0] = r
	return nil
}

func (e *Engine[W]) equal(out, a, b []W) error {
	width := len(a)
	var t, r W
	e.be.Xnor(&r, &a[0], &b[0])
	for i := 1; i < width; i++ {
		e.be.Xnor(&t, &a[i], &b[i])
		if err := e.be.And(&r, &r, &t); err != nil {
			return err
		}
	}
	out[0] = r
	return nil
}

// isZeroNonZero implements IsZero/NonZero. The loop starts at i=0 while
// r is also seeded from NOT a[0], so the first iteration ANDs NOT a[0]
// with itself and folds bit 0 twice; r ends as the AND of NOT a[i] over
// all bits, i.e. 1 exactly when a is zero. The circuit uses width AND
// gates, the same on garbler and evaluator.
func (e *Engine[W]) isZeroNonZero(out, a []W, nonZero bool) error {
	width := len(a)
	var r, t W
	e.be.Not(&r, &a[0])
	for i := 0; i < width; i++ {
		e.be.Not(&t, &a[i])
		if err := e.be.And(&r, &r, &t); err != nil {
			return err
		}
	}
	if nonZero {
		e.be.Not(&out[0], &r)
	} else {
		out[0] = r
	}
	return nil
}

func (e *Engine[W]) bitOr(out, a, b []W) error {
	var x, t W
	for i := range out {
		e.be.Xor(&x, &a[i], &b[i])
		if err := e.be.And(&t, &a[i], &b[i]); err != nil {
			return err
		}
		e.be.Xor(&out[i], &x, &t)
	}
	return nil
}

func (e *Engine[W]) valueSelect(out, a, b, s []W) error {
	selector := s[0]
	var d, t W
	for i := range out {
		e.be.Xor(&d, &a[i], &b[i])
		if err := e.be.And(&t, &d, &selector); err != nil {
			return err
		}
		e.be.Xor(&out[i], &t, &a[i])
	}
	return nil
}

// intMultiply is a supplemental opcode (see SPEC_FULL.md §4.3) absent
// from the distilled specification but present in the MAGE reference
// implementation's instruction set. It is a width-squared shift-and-add
// multiplier built entirely from the same gate vocabulary as intAdd,
// truncated modulo 2^width like the other arithmetic opcodes.
func (e *Engine[W]) intMultiply(out, a, b []W) error {
	width := len(out)
	acc := make([]W, width)
	for i := range acc {
		e.be.Zero(&acc[i])
	}
	shifted := make([]W, width)
	for j := 0; j < width; j++ {
		for i := 0; i < width; i++ {
			if i < j {
				e.be.Zero(&shifted[i])
				continue
			}
			if err := e.be.And(&shifted[i], &a[i-j], &b[j]); err != nil {
				return err
			}
		}
		next := make([]W, width)
		if err := e.intAdd(next, acc, shifted); err != nil {
			return err
		}
		acc = next
	}
	copy(out, acc)
	return nil
}
