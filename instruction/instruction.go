//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package instruction decodes packed physical instructions from the
// engine's bytecode stream. It is a pure view: it does not touch wire
// memory, only the byte representation of the instruction record.
package instruction

import (
	"encoding/binary"
	"fmt"

	pkgmath "github.com/rivergate/mpcvm/pkg/math"
)

// OpCode identifies the operation a packed instruction performs.
type OpCode uint8

// Opcodes understood by the execution engine. Values are stable across
// program versions; Undefined is reserved as the zero value so that a
// zeroed-out instruction stream is never silently mistaken for a valid
// program.
const (
	Undefined OpCode = iota
	Input
	Output
	PublicConstant
	Copy
	IntAdd
	IntSub
	IntIncrement
	IntDecrement
	IntMultiply
	IntLess
	Equal
	IsZero
	NonZero
	BitNOT
	BitAND
	BitOR
	BitXOR
	ValueSelect
)

func (op OpCode) String() string {
	switch op {
	case Undefined:
		return "Undefined"
	case Input:
		return "Input"
	case Output:
		return "Output"
	case PublicConstant:
		return "PublicConstant"
	case Copy:
		return "Copy"
	case IntAdd:
		return "IntAdd"
	case IntSub:
		return "IntSub"
	case IntIncrement:
		return "IntIncrement"
	case IntDecrement:
		return "IntDecrement"
	case IntMultiply:
		return "IntMultiply"
	case IntLess:
		return "IntLess"
	case Equal:
		return "Equal"
	case IsZero:
		return "IsZero"
	case NonZero:
		return "NonZero"
	case BitNOT:
		return "BitNOT"
	case BitAND:
		return "BitAND"
	case BitOR:
		return "BitOR"
	case BitXOR:
		return "BitXOR"
	case ValueSelect:
		return "ValueSelect"
	default:
		return fmt.Sprintf("OpCode(%d)", uint8(op))
	}
}

// Format identifies the tail shape that follows an instruction's fixed
// header, per §3 of the specification.
type Format uint8

// Tail shapes.
const (
	FormatNoArgs Format = iota
	FormatOneArg
	FormatTwoArgs
	FormatThreeArgs
	FormatConstant
)

// FormatOf returns the tail shape associated with op. Panics on an
// unknown opcode; the caller is expected to have already rejected
// Undefined/out-of-range opcodes as a fatal decode error.
func FormatOf(op OpCode) Format {
	switch op {
	case Input, Output:
		return FormatNoArgs
	case PublicConstant:
		return FormatConstant
	case Copy, IntIncrement, IntDecrement, IsZero, NonZero, BitNOT:
		return FormatOneArg
	case IntAdd, IntSub, IntMultiply, IntLess, Equal, BitAND, BitOR, BitXOR:
		return FormatTwoArgs
	case ValueSelect:
		return FormatThreeArgs
	default:
		panic(fmt.Sprintf("instruction: unknown opcode %v", op))
	}
}

// NumArgs returns the number of input operands for format.
func (f Format) NumArgs() int {
	switch f {
	case FormatNoArgs, FormatConstant:
		return 0
	case FormatOneArg:
		return 1
	case FormatTwoArgs:
		return 2
	case FormatThreeArgs:
		return 3
	default:
		return 0
	}
}

// Instruction is the decoded view of one packed physical instruction.
// Constant carries the public-constant literal (Format == FormatConstant
// only); Input1/2/3 carry operand wire addresses (meaningless past
// NumArgs for the instruction's format).
type Instruction struct {
	Op       OpCode
	Output   uint64
	Width    int
	Input1   uint64
	Input2   uint64
	Input3   uint64
	Constant uint64
}

// headerSize is opcode (1 byte) + output address (8 bytes).
const headerSize = 1 + 8

// maxForWidth returns the largest value representable in width bits, for
// validating a decoded public-constant literal against its declared
// width rather than letting a truncated value through silently.
func maxForWidth(width int) uint64 {
	switch {
	case width <= 0:
		return 0
	case width >= 64:
		return pkgmath.MaxUint64
	case width <= 8:
		return pkgmath.MaxUint8 >> (8 - width)
	case width <= 16:
		return pkgmath.MaxUint16 >> (16 - width)
	case width <= 32:
		return pkgmath.MaxUint32 >> (32 - width)
	default:
		return pkgmath.MaxUint64 >> (64 - width)
	}
}

// Decode reads one packed instruction from the front of buf and returns
// it along with the number of bytes consumed. Byte order is
// little-endian throughout the instruction stream (see DESIGN.md for
// the rationale). The instruction stream itself — its source, whether
// memory-mapped or read incrementally — is an external collaborator;
// Decode only interprets bytes already in memory.
func Decode(buf []byte) (Instruction, int, error) {
	if len(buf) < headerSize {
		return Instruction{}, 0, fmt.Errorf("instruction: short header: have %d bytes, need %d", len(buf), headerSize)
	}
	op := OpCode(buf[0])
	if op == Undefined || op > ValueSelect {
		return Instruction{}, 0, fmt.Errorf("instruction: unknown opcode %v", op)
	}
	output := binary.LittleEndian.Uint64(buf[1:9])

	var instr Instruction
	instr.Op = op
	instr.Output = output

	format := FormatOf(op)
	switch format {
	case FormatNoArgs:
		const tail = 2
		if len(buf) < headerSize+tail {
			return Instruction{}, 0, fmt.Errorf("instruction: short no_args tail for %v", op)
		}
		instr.Width = int(binary.LittleEndian.Uint16(buf[9:11]))
		return instr, headerSize + tail, nil

	case FormatOneArg:
		const tail = 8 + 2
		if len(buf) < headerSize+tail {
			return Instruction{}, 0, fmt.Errorf("instruction: short one_arg tail for %v", op)
		}
		instr.Input1 = binary.LittleEndian.Uint64(buf[9:17])
		instr.Width = int(binary.LittleEndian.Uint16(buf[17:19]))
		return instr, headerSize + tail, nil

	case FormatTwoArgs:
		const tail = 8 + 8 + 2
		if len(buf) < headerSize+tail {
			return Instruction{}, 0, fmt.Errorf("instruction: short two_args tail for %v", op)
		}
		instr.Input1 = binary.LittleEndian.Uint64(buf[9:17])
		instr.Input2 = binary.LittleEndian.Uint64(buf[17:25])
		instr.Width = int(binary.LittleEndian.Uint16(buf[25:27]))
		return instr, headerSize + tail, nil

	case FormatThreeArgs:
		const tail = 8 + 8 + 8 + 2
		if len(buf) < headerSize+tail {
			return Instruction{}, 0, fmt.Errorf("instruction: short three_args tail for %v", op)
		}
		instr.Input1 = binary.LittleEndian.Uint64(buf[9:17])
		instr.Input2 = binary.LittleEndian.Uint64(buf[17:25])
		instr.Input3 = binary.LittleEndian.Uint64(buf[25:33])
		instr.Width = int(binary.LittleEndian.Uint16(buf[33:35]))
		return instr, headerSize + tail, nil

	case FormatConstant:
		const tail = 8 + 1
		if len(buf) < headerSize+tail {
			return Instruction{}, 0, fmt.Errorf("instruction: short constant tail for %v", op)
		}
		instr.Constant = binary.LittleEndian.Uint64(buf[9:17])
		instr.Width = int(buf[17])
		if instr.Constant > maxForWidth(instr.Width) {
			return Instruction{}, 0, fmt.Errorf("instruction: constant %#x overflows declared width %d for %v", instr.Constant, instr.Width, op)
		}
		return instr, headerSize + tail, nil

	default:
		return Instruction{}, 0, fmt.Errorf("instruction: unhandled format %v for %v", format, op)
	}
}
