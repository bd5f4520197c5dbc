/*
   Bank descriptor storage encoding.

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

// Package addr implements virtual-to-absolute address translation over
// the banked, segmented memory model: bank descriptor tables, indirect
// and gate bank chains, limit checks and access checks.
package addr

import (
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/word"
)

// BDWords is the size in words of one bank descriptor as stored in a
// bank descriptor table.
const BDWords = 8

// DecodeBD unpacks an 8-word bank descriptor per spec §6's field
// layout: word0 bits0-2 type, bits3-17 general permissions, bits18-35
// special permissions; word1 access lock; word2-3 limits; word4-5 base
// address; word6-7 target L,BDI.
func DecodeBD(words [BDWords]word.Word) register.BankDescriptor {
	w0 := words[0]
	return register.BankDescriptor{
		Type:               register.BankType((w0 >> 33) & 0x7),
		GeneralPermissions: uint32((w0 >> 18) & 0x7FFF),
		SpecialPermissions: uint32(w0 & 0x3FFFF),
		AccessLock:         uint32(words[1] & word.Mask),
		LowerLimit:         uint32(words[2] & word.Mask),
		UpperLimit:         uint32(words[3] & word.Mask),
		BaseAddress:        (uint32(words[4]&word.Mask) << 18) | uint32(words[5]&0x3FFFF),
		Displacement:       0,
		TargetLevel:        uint8((words[6] >> 33) & 0x7),
		TargetBDI:          uint16(words[6] & 0x7FFF),
		GeneralFault:       words[7]&1 != 0,
	}
}

// EncodeBD packs a bank descriptor back into its 8-word storage form,
// the inverse of DecodeBD. Used by the loader to install banks and by
// tests to build fixtures.
func EncodeBD(bd register.BankDescriptor) [BDWords]word.Word {
	var words [BDWords]word.Word
	w0 := word.Word(bd.Type&0x7) << 33
	w0 |= word.Word(bd.GeneralPermissions&0x7FFF) << 18
	w0 |= word.Word(bd.SpecialPermissions & 0x3FFFF)
	words[0] = w0
	words[1] = word.Word(bd.AccessLock) & word.Mask
	words[2] = word.Word(bd.LowerLimit) & word.Mask
	words[3] = word.Word(bd.UpperLimit) & word.Mask
	words[4] = word.Word(bd.BaseAddress>>18) & 0x3FFFF
	words[5] = word.Word(bd.BaseAddress) & 0x3FFFF
	w6 := word.Word(bd.TargetLevel&0x7) << 33
	w6 |= word.Word(bd.TargetBDI & 0x7FFF)
	words[6] = w6
	if bd.GeneralFault {
		words[7] = 1
	}
	return words
}
