/*
   Register file: general registers, designator, indicator-key,
   program-address and base registers.

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

// Package register implements the instruction processor's architected
// register file: 128 general-register-set slots, the designator,
// indicator-key and program-address registers, and the base-register
// cache for loaded bank descriptors.
package register

import "github.com/rcornwell/ux2200/emu/word"

// GRS slot layout. 128 logical slots: 16 index, 16 arithmetic, 16
// register, each doubled for the executive-mode shadow set, with the
// remainder reserved for system control registers not modeled here.
const (
	slotX  = 0
	slotA  = 16
	slotR  = 32
	slotEX = 48
	slotEA = 64
	slotER = 80
	GRSLen = 128
)

// File holds one instruction processor's architected register state.
type File struct {
	GRS [GRSLen]word.Word

	DR  Designator
	IKR IndicatorKey
	PAR ProgramAddress

	Base [32]BaseRegister
}

// Designator is the DR: processor mode/flag bits.
type Designator struct {
	BasicModeEnabled       bool
	ProcessorPrivilege     uint8 // 0 (most privileged) .. 3
	Carry                  bool
	Overflow               bool
	CharacteristicOverflow bool
	CharacteristicUnderflow bool
	DivideCheck            bool
	OperationTrapEnabled   bool
	DeferrableInterruptEnabled bool
	ExecRegisterSetSelection   bool
	QuarterWordMode        bool
	ArithmeticExceptionEnabled bool
}

// IndicatorKey is the IKR: access key plus resumption bookkeeping for a
// partially executed (interruptible, restartable) instruction.
type IndicatorKey struct {
	AccessKey uint8
	ShortStatus uint8
	MidInstruction MidInstructionState
}

// MidInstructionState records enough of a resumable (block-move style)
// instruction's progress to resume it after an interrupt.
type MidInstructionState struct {
	Active     bool
	Opcode     uint8
	Source     uint32
	Dest       uint32
	Remaining  uint32
}

// ProgramAddress is the PAR: (level, bank-descriptor-index, program
// counter) triple naming the currently executing instruction's virtual
// address.
type ProgramAddress struct {
	Level uint8 // 3 bits
	BDI   uint16 // 15 bits
	PC    uint32 // 18 bits
}

// BaseRegister is a cached copy of a loaded bank descriptor plus the
// absolute base address computed for it. A Void base register has no
// bank loaded.
type BaseRegister struct {
	Void   bool
	BD     BankDescriptor
	Base   uint32 // Absolute address base for this bank.
}

// BankType enumerates the kinds of bank descriptor.
type BankType uint8

const (
	ExtendedMode BankType = iota
	BasicMode
	Gate
	Indirect
	QueueRepository
	Queue
)

// BankDescriptor is the 8-word structure loaded from the Bank
// Descriptor Table for one (level, BDI) pair.
type BankDescriptor struct {
	Type                   BankType
	AccessLock             uint32
	GeneralPermissions     uint32 // Bits 3-17 of BD word 0 (15 bits).
	SpecialPermissions     uint32 // Bits 18-35 of BD word 0 (18 bits).
	LowerLimit             uint32
	UpperLimit             uint32
	Displacement           uint32
	BaseAddress            uint32
	GeneralFault           bool
	TargetLevel            uint8 // For Indirect/Gate banks.
	TargetBDI              uint16
}

// New returns a freshly reset register file: zeroed GRS, DR cleared to
// the most-privileged state, all base registers void.
func New() *File {
	f := &File{}
	f.Reset()
	return f
}

// Reset clears all architectural state to its power-on values.
func (f *File) Reset() {
	for i := range f.GRS {
		f.GRS[i] = 0
	}
	f.DR = Designator{}
	f.IKR = IndicatorKey{}
	f.PAR = ProgramAddress{}
	for i := range f.Base {
		f.Base[i] = BaseRegister{Void: true}
	}
}

// execOffset returns slotEX/slotEA/slotER offset when the designator's
// exec-register-set-selection bit is set, else 0 — the "exec-or-user
// selector" named in spec 4.B.
func (f *File) execOffset() int {
	if f.DR.ExecRegisterSetSelection {
		return slotEX - slotX
	}
	return 0
}

// X returns the value of index register n (0-15), honoring the exec
// shadow set selection.
func (f *File) X(n int) word.Word {
	return f.GRS[slotX+f.execOffset()+(n&0xF)]
}

// SetX stores index register n.
func (f *File) SetX(n int, v word.Word) {
	f.GRS[slotX+f.execOffset()+(n&0xF)] = v & word.Mask
}

// A returns arithmetic register n (0-15).
func (f *File) A(n int) word.Word {
	return f.GRS[slotA+f.execOffset()+(n&0xF)]
}

// SetA stores arithmetic register n.
func (f *File) SetA(n int, v word.Word) {
	f.GRS[slotA+f.execOffset()+(n&0xF)] = v & word.Mask
}

// R returns register-set register n (0-15).
func (f *File) R(n int) word.Word {
	return f.GRS[slotR+f.execOffset()+(n&0xF)]
}

// SetR stores register-set register n.
func (f *File) SetR(n int, v word.Word) {
	f.GRS[slotR+f.execOffset()+(n&0xF)] = v & word.Mask
}

// GetPartial reads field f of GRS slot idx (0-127), the form operand
// resolution uses when u < 128 names a GRS slot directly.
func (f *File) GetPartial(idx int, fld word.Field) word.Word {
	return word.Extract(f.GRS[idx&(GRSLen-1)], fld)
}

// SetPartial writes field fld of GRS slot idx, leaving the rest of the
// slot's bits untouched.
func (f *File) SetPartial(idx int, fld word.Field, v word.Word) {
	i := idx & (GRSLen - 1)
	f.GRS[i] = word.Insert(f.GRS[i], fld, v)
}

// XI returns the signed increment field of index register n.
func (f *File) XI(n int) word.Word {
	return word.Extract(f.X(n), word.XH1)
}

// SetXI stores the increment field of index register n, leaving the
// modifier field untouched.
func (f *File) SetXI(n int, v word.Word) {
	cur := f.X(n)
	f.SetX(n, word.Insert(cur, word.H1, word.Word(word.Truncate18(v))))
}

// XM returns the signed modifier field of index register n.
func (f *File) XM(n int) word.Word {
	return word.Extract(f.X(n), word.XH2)
}

// SetXM stores the modifier field of index register n, leaving the
// increment field untouched. Writes truncate to 18 bits (sign dropped on
// the way in, restored by XM reads via sign extension).
func (f *File) SetXM(n int, v word.Word) {
	cur := f.X(n)
	f.SetX(n, word.Insert(cur, word.H2, word.Word(word.Truncate18(v))))
}

// SetBasePointer loads base register b (0-31) with bd, computing its
// absolute base from bd.BaseAddress. Only bank-load handlers call this —
// the translation pipeline never silently refreshes a base register.
func (f *File) SetBasePointer(b int, bd BankDescriptor) {
	f.Base[b&0x1F] = BaseRegister{Void: false, BD: bd, Base: bd.BaseAddress}
}

// SetBasePointerVoid invalidates base register b.
func (f *File) SetBasePointerVoid(b int) {
	f.Base[b&0x1F] = BaseRegister{Void: true}
}

// GetBasePointer returns the bank descriptor cached in base register b
// and whether it is void.
func (f *File) GetBasePointer(b int) (BankDescriptor, bool) {
	br := f.Base[b&0x1F]
	return br.BD, br.Void
}
