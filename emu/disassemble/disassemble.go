/*
   Instruction disassembler.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package disassemble renders a decoded instruction word as a mnemonic
// and operand string, the way the teacher's opcodemap/disassemble pair
// renders an IBM 370 instruction. That pair keys off an 8-bit opcode
// byte against a type/flags table (RR, RX, RS, SI, SS, S); this core
// has no byte-aligned opcode field, so the table keys off the 6-bit
// f-field directly and renders the operand format (register pair,
// register+jump-operand, or register+immediate) each instruction family
// actually uses.
package disassemble

import (
	"fmt"

	"github.com/rcornwell/ux2200/emu/operand"
	"github.com/rcornwell/ux2200/emu/word"
)

// Format names how an instruction's operands are rendered.
type Format int

const (
	// fmtNone has no operands beyond the mnemonic (Halt).
	fmtNone Format = iota
	// fmtReg is a single register operand (a-field).
	fmtReg
	// fmtRegReg is two adjacent register operands (a-field, a+1-field) —
	// the logical family stores into the register following the one
	// named in the a-field. The u-field operand is not shown.
	fmtRegReg
	// fmtRegOperand is a register plus a resolved-operand u/d-field
	// address (load/store/arithmetic).
	fmtRegOperand
	// fmtJump is a jump target: a-field (the register tested, if any)
	// plus the u/d-field jump address.
	fmtJump
)

type opcode struct {
	name   string
	format Format
}

// opMap keys off the f-field constants emu/cpu's dispatch table uses,
// not the teacher's byte-wide opcode — the one renaming this package
// must track if that table changes.
var opMap = map[uint8]opcode{
	1:  {"HALT", fmtNone},
	2:  {"LR", fmtRegOperand},
	3:  {"LX", fmtRegOperand},
	4:  {"LA", fmtRegOperand},
	5:  {"STA", fmtRegOperand},
	6:  {"STX", fmtRegOperand},
	7:  {"LXI", fmtRegOperand},
	8:  {"AX", fmtRegOperand},
	9:  {"AND", fmtRegReg},
	10: {"OR", fmtRegReg},
	11: {"XOR", fmtRegReg},
	12: {"DSA", fmtRegOperand},
	13: {"J", fmtJump},
	14: {"JZ", fmtJump},
	15: {"JNZ", fmtJump},
	16: {"JP", fmtJump},
	17: {"JN", fmtJump},
	18: {"JNFO", fmtJump},
	19: {"LBN", fmtRegOperand},
	20: {"LOCL", fmtJump},
	21: {"AAIJ", fmtJump},
	22: {"RMD", fmtReg},
	23: {"LBU", fmtRegOperand},
	24: {"LBE", fmtRegOperand},
}

// Instruction renders w (in the given addressing mode) as a mnemonic
// string, the disassembler-side counterpart of operand.Decode.
func Instruction(w word.Word, basicMode bool) string {
	instr := operand.Decode(w, basicMode)
	return format(instr)
}

func format(instr operand.Instruction) string {
	if instr.F == 0 {
		return "ILLEGAL +0"
	}
	op, ok := opMap[instr.F]
	if !ok {
		return undefined(instr)
	}
	switch op.format {
	case fmtNone:
		return op.name
	case fmtReg:
		return fmt.Sprintf("%-6s A%d", op.name, instr.A)
	case fmtRegReg:
		return fmt.Sprintf("%-6s A%d,A%d", op.name, instr.A, instr.A+1)
	case fmtRegOperand:
		return fmt.Sprintf("%-6s A%d,%s", op.name, instr.A, operandField(instr))
	case fmtJump:
		return fmt.Sprintf("%-6s A%d,%s", op.name, instr.A, operandField(instr))
	default:
		return undefined(instr)
	}
}

// operandField renders the addressing fields common to every family:
// the x-field (if indexing is requested) and the u/d-field, with the
// indirect-addressing flag shown as a leading '*' the way the teacher's
// assembler-facing tools mark indirect operands.
func operandField(instr operand.Instruction) string {
	field := fmt.Sprintf("%#o", instr.DisplacementField())
	if instr.I {
		field = "*" + field
	}
	if instr.X != 0 {
		field += fmt.Sprintf(",X%d", instr.X)
	}
	if instr.BasicMode && instr.B != 0 {
		field += fmt.Sprintf("(B%d)", instr.B)
	}
	return field
}

func undefined(instr operand.Instruction) string {
	return fmt.Sprintf("UNKNOWN F=%#o J=%#o A=%d X=%d", instr.F, instr.J, instr.A, instr.X)
}
