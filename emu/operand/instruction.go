/*
   Instruction word decode.

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

// Package operand implements u-field computation, indexing, indirect
// addressing and jump-operand semantics (spec §4.E) on top of the
// address-translation and storage layers.
package operand

import "github.com/rcornwell/ux2200/emu/word"

// Instruction decodes the common fields of one 36-bit instruction word:
// f:6 | j:4 | a:4 | x:4 | h:1 | i:1 | u:16 in extended mode, with u
// repartitioned into b:3 | d:13 in basic mode.
type Instruction struct {
	F uint8
	J uint8
	A uint8
	X uint8
	H bool
	I bool
	U uint32 // Valid in extended mode.
	B uint8  // Valid in basic mode.
	D uint32 // Valid in basic mode.

	BasicMode bool
}

// Decode unpacks w into an Instruction, selecting the basic-mode u-field
// repartition when basicMode is set.
func Decode(w word.Word, basicMode bool) Instruction {
	v := uint64(w) & uint64(word.Mask)
	instr := Instruction{
		F:         uint8((v >> 30) & 0x3F),
		J:         uint8((v >> 26) & 0xF),
		A:         uint8((v >> 22) & 0xF),
		X:         uint8((v >> 18) & 0xF),
		H:         (v>>17)&1 != 0,
		I:         (v>>16)&1 != 0,
		BasicMode: basicMode,
	}
	if basicMode {
		instr.B = uint8((v >> 13) & 0x7)
		instr.D = uint32(v & 0x1FFF)
	} else {
		instr.U = uint32(v & 0xFFFF)
	}
	return instr
}

// ImmediateValue returns the sign-extended u-field (or basic-mode d
// field) as a 36-bit value, for getImmediateOperand.
func (instr Instruction) ImmediateValue() word.Word {
	if instr.BasicMode {
		return word.Word(instr.D)
	}
	u := instr.U & 0xFFFF
	if u&0x8000 != 0 {
		return word.Word(u) | (word.Mask &^ 0xFFFF)
	}
	return word.Word(u)
}

// DisplacementField is the raw u/d field before indexing is applied.
func (instr Instruction) DisplacementField() uint32 {
	if instr.BasicMode {
		return instr.D
	}
	return instr.U
}
