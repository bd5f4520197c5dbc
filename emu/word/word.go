/*
   Word & arithmetic primitives for the 36-bit ones-complement architecture.

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

// Package word implements the 36-bit ones-complement word and its partial
// word views, plus the add/shift/compare primitives every other component
// builds on.
package word

// A Word holds a 36-bit ones-complement value in the low 36 bits of a
// uint64; the top 28 bits are always zero.
type Word uint64

const (
	Bits    = 36
	Mask    Word = 0xF_FFFF_FFFF // 36 one-bits.
	SignBit Word = 1 << 35
	NegZero Word = Mask // All-ones: negative zero.
)

// Negate returns the ones-complement negation of w: bitwise complement
// within the 36-bit field. Negating +0 yields -0 and vice versa; neither
// is ever normalized away.
func Negate(w Word) Word {
	return (^w) & Mask
}

// IsNegative reports the sign bit, treating -0 as negative.
func IsNegative(w Word) bool {
	return w&SignBit != 0
}

// IsZero reports whether w is either +0 or -0.
func IsZero(w Word) bool {
	return w == 0 || w == NegZero
}

// Compare treats +0 and -0 as equal for ordering purposes, but callers
// that care about the distinction should test IsNegative/NegZero
// directly. Returns -1, 0, 1.
func Compare(a, b Word) int {
	av, bv := signedMagnitude(a), signedMagnitude(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func signedMagnitude(w Word) int64 {
	if IsZero(w) {
		return 0
	}
	if IsNegative(w) {
		return -int64(Negate(w) & Mask)
	}
	return int64(w)
}

// AddResult carries the sum plus the architectural carry/overflow flags
// of a single 36-bit ones-complement add.
type AddResult struct {
	Sum      Word
	Carry    bool
	Overflow bool
}

// Add36 adds a and b with end-around carry and reports carry/overflow.
// Overflow is set when both operands share a sign different from the
// result's sign (signed overflow), per the ones-complement add rule.
func Add36(a, b Word) AddResult {
	sum := uint64(a) + uint64(b)
	carry := false
	if sum > uint64(Mask) {
		sum = (sum + 1) & uint64(Mask) // end-around carry
		carry = true
	}
	result := Word(sum)

	aNeg := IsNegative(a)
	bNeg := IsNegative(b)
	rNeg := IsNegative(result)
	overflow := aNeg == bNeg && rNeg != aNeg

	return AddResult{Sum: result, Carry: carry, Overflow: overflow}
}

// DoubleWord is a 72-bit ones-complement value held as (hi, lo) halves,
// each a 36-bit Word.
type DoubleWord struct {
	Hi, Lo Word
}

// Add72 performs a 72-bit ones-complement add of two double words,
// propagating the end-around carry across the hi/lo boundary.
func Add72(a, b DoubleWord) (DoubleWord, bool, bool) {
	loSum := uint64(a.Lo) + uint64(b.Lo)
	loCarry := uint64(0)
	if loSum > uint64(Mask) {
		loSum &= uint64(Mask)
		loCarry = 1
	}

	hiSum := uint64(a.Hi) + uint64(b.Hi) + loCarry
	carry := false
	if hiSum > uint64(Mask) {
		hiSum = (hiSum + 1) & uint64(Mask)
		carry = true
	}

	result := DoubleWord{Hi: Word(hiSum), Lo: Word(loSum)}

	aNeg := IsNegative(a.Hi)
	bNeg := IsNegative(b.Hi)
	rNeg := IsNegative(result.Hi)
	overflow := aNeg == bNeg && rNeg != aNeg

	return result, carry, overflow
}

// NegateDouble returns the ones-complement negation of a 72-bit value.
func NegateDouble(d DoubleWord) DoubleWord {
	return DoubleWord{Hi: Negate(d.Hi), Lo: Negate(d.Lo)}
}

// pack72/unpack72 combine a DoubleWord into one uint64 and split it
// back. A uint64 holds only 64 bits, so pack72 drops the top 8 bits of
// Hi; the 72-bit shift routines below work on Hi and Lo separately and
// do not call them.
func pack72(d DoubleWord) uint64 {
	return (uint64(d.Hi) << 36) | uint64(d.Lo)
}

func unpack72(v uint64) DoubleWord {
	return DoubleWord{Hi: Word((v >> 36) & uint64(Mask)), Lo: Word(v & uint64(Mask))}
}

// RightShiftAlgebraic36 shifts a single word right, preserving sign:
// vacated high bits are filled with the sign bit.
func RightShiftAlgebraic36(w Word, count uint) Word {
	count = clamp(count, Bits)
	if count == 0 {
		return w
	}
	if count >= Bits {
		if IsNegative(w) {
			return NegZero
		}
		return 0
	}
	sign := uint64(0)
	if IsNegative(w) {
		sign = (uint64(1)<<count - 1) << (Bits - count)
	}
	return Word((uint64(w)>>count)|sign) & Mask
}

// RightShiftAlgebraic72 shifts a 72-bit double word right algebraically,
// preserving sign across the full 72-bit field. At count=71 the result
// collapses to 0 or -0 matching the sign of d.
func RightShiftAlgebraic72(d DoubleWord, count uint) DoubleWord {
	const width = 2 * Bits
	count = clamp(count, width)
	neg := IsNegative(d.Hi)
	if count == 0 {
		return d
	}
	if count >= width {
		if neg {
			return DoubleWord{Hi: NegZero, Lo: NegZero}
		}
		return DoubleWord{Hi: 0, Lo: 0}
	}
	fill := Word(0)
	if neg {
		fill = NegZero
	}
	if count >= Bits {
		return DoubleWord{Hi: fill, Lo: RightShiftAlgebraic36(d.Hi, count-Bits)}
	}
	lo := (d.Lo>>count | d.Hi<<(Bits-count)) & Mask
	return DoubleWord{Hi: RightShiftAlgebraic36(d.Hi, count), Lo: lo}
}

// RightShiftCircular rotates a single word right by count bits.
func RightShiftCircular(w Word, count uint) Word {
	count %= Bits
	if count == 0 {
		return w
	}
	v := uint64(w) & uint64(Mask)
	return Word((v>>count)|(v<<(Bits-count))) & Mask
}

// LeftShiftLogical shifts a single word left, discarding bits shifted out
// of the 36-bit field (no sign preservation, no carry capture).
func LeftShiftLogical(w Word, count uint) Word {
	count = clamp(count, Bits)
	return Word(uint64(w)<<count) & Mask
}

// RightShiftLogical72 performs a non-algebraic (zero fill) 72-bit right
// shift, used by the logical double-shift family.
func RightShiftLogical72(d DoubleWord, count uint) DoubleWord {
	const width = 2 * Bits
	count = clamp(count, width)
	if count >= width {
		return DoubleWord{}
	}
	if count == 0 {
		return d
	}
	if count >= Bits {
		return DoubleWord{Lo: d.Hi >> (count - Bits)}
	}
	return DoubleWord{Hi: d.Hi >> count, Lo: (d.Lo>>count | d.Hi<<(Bits-count)) & Mask}
}

// LeftShiftCircular72 rotates a 72-bit value left by count bits.
func LeftShiftCircular72(d DoubleWord, count uint) DoubleWord {
	const width = 2 * Bits
	count %= width
	if count >= Bits {
		d = DoubleWord{Hi: d.Lo, Lo: d.Hi}
		count -= Bits
	}
	if count == 0 {
		return d
	}
	hi := (d.Hi<<count | d.Lo>>(Bits-count)) & Mask
	lo := (d.Lo<<count | d.Hi>>(Bits-count)) & Mask
	return DoubleWord{Hi: hi, Lo: lo}
}

func clamp(count, width uint) uint {
	if count > width {
		return width
	}
	return count
}

// SignExtend18 sign-extends an 18-bit ones-complement field (as held in
// the low 18 bits of v) out to a full 36-bit Word.
func SignExtend18(v uint32) Word {
	v &= 0x3FFFF
	if v&0x20000 != 0 {
		return Word(v) | (Mask &^ 0x3FFFF)
	}
	return Word(v)
}

// Truncate18 extracts the low 18 bits of w, for writing back into an
// 18-bit field such as XI or XM.
func Truncate18(w Word) uint32 {
	return uint32(w) & 0x3FFFF
}
