package operand

import (
	"github.com/rcornwell/ux2200/emu/addr"
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
	"github.com/rcornwell/ux2200/emu/word"
)

// Resolver implements the per-processor operand-resolution contract of
// spec §4.E: getOperand, getJumpOperand, getImmediateOperand, and the
// return-control-stack push/pop used by call/return instructions.
type Resolver struct {
	Regs  *register.File
	Trans *addr.Translator
	Mem   *storage.MSP
	UPI   uint16

	// InstructionBank is the (L,BDI) of the currently executing
	// instruction's bank. The resolver does not read it: storage
	// operands and jump targets resolve through the base register the
	// caller names.
	InstructionBank addr.VirtualAddress

	// RCSBank is the (L,BDI) of the return-control-stack bank; RCSTop is
	// the next free word offset within it. The stack grows downward:
	// Push pre-decrements, Pop reads then post-increments.
	RCSBank addr.VirtualAddress
	RCSTop  uint32
}

// applyIndexing computes the effective displacement after adding the
// selected index register's XI field, and performs the post-read
// increment of XI by XM when H=1 (spec §4.E: "when h=1 (increment), the
// X register's XM field is added post-read to XI... when h=0, XI alone
// supplies the increment but is not written back").
func (r *Resolver) applyIndexing(instr Instruction) uint32 {
	base := instr.DisplacementField()
	if instr.X == 0 {
		return base
	}
	xi := r.Regs.XI(int(instr.X))
	sum := word.Add36(word.Word(base), xi)
	effective := uint32(sum.Sum) & 0x3FFFF

	if instr.H {
		xm := r.Regs.XM(int(instr.X))
		incr := word.Add36(xi, xm)
		r.Regs.SetXI(int(instr.X), incr.Sum)
	}
	return effective
}

// baseRegisterFor selects the base register an operand resolves
// through: in basic mode, B12-B15 chosen by the instruction's B field
// (spec §4.E); in extended mode, the caller supplies the base selector
// the opcode table names (often the active instruction bank's base, or
// an explicit operand base register for bank-relative operands).
func (r *Resolver) baseRegisterFor(instr Instruction, extendedBaseReg int) int {
	if instr.BasicMode {
		return 12 + int(instr.B)
	}
	return extendedBaseReg
}

// withinLimits applies the same lower/upper limit check translate.Translate
// uses: an extended-mode bank's lower limit is stated in 512-word blocks,
// every other bank type states both limits in words (spec §4.D).
func withinLimits(bd register.BankDescriptor, disp uint32) bool {
	lower := bd.LowerLimit
	if bd.Type == register.ExtendedMode {
		lower *= 512
	}
	return disp >= lower && disp <= bd.UpperLimit
}

// GetOperand resolves the effective operand: a GRS slot when the
// displacement names one (u < 128) and grsAllowed permits it, otherwise
// a storage word reached through the given base register.
func (r *Resolver) GetOperand(instr Instruction, grsAllowed bool, extendedBaseReg int, accessKey uint8) (word.Word, error) {
	disp := r.applyIndexing(instr)

	if grsAllowed && !instr.BasicMode && disp < register.GRSLen {
		return r.Regs.GRS[disp], nil
	}

	baseReg := r.baseRegisterFor(instr, extendedBaseReg)
	bd, void := r.Regs.GetBasePointer(baseReg)
	if void {
		return 0, addr.Exception{Reason: addr.BDTypeInvalid, Usage: addr.Read}
	}
	if !withinLimits(bd, disp) {
		return 0, addr.Exception{Reason: addr.OutsideLimits, Usage: addr.Read}
	}
	if !addr.CheckAccessLock(bd.AccessLock, accessKey) {
		return 0, addr.Exception{Reason: addr.AccessViolation, Usage: addr.Read}
	}
	absolute := bd.BaseAddress + disp - bd.Displacement
	return r.Mem.ReadAbsolute(r.UPI, absolute)
}

// PutOperand is the store-side counterpart of GetOperand: it never
// targets a GRS slot implicitly the way loads can, since stores always
// address the register or storage location the opcode table names
// explicitly. Handlers that store to a register call register.File
// setters directly; PutOperand is for storage-targeted operands.
func (r *Resolver) PutOperand(instr Instruction, extendedBaseReg int, accessKey uint8, value word.Word) error {
	disp := r.applyIndexing(instr)
	baseReg := r.baseRegisterFor(instr, extendedBaseReg)
	bd, void := r.Regs.GetBasePointer(baseReg)
	if void {
		return addr.Exception{Reason: addr.BDTypeInvalid, Usage: addr.Write}
	}
	if !withinLimits(bd, disp) {
		return addr.Exception{Reason: addr.OutsideLimits, Usage: addr.Write}
	}
	if !addr.CheckAccessLock(bd.AccessLock, accessKey) {
		return addr.Exception{Reason: addr.AccessViolation, Usage: addr.Write}
	}
	absolute := bd.BaseAddress + disp - bd.Displacement
	return r.Mem.WriteAbsolute(r.UPI, absolute, value)
}

// GetImmediateOperand returns the sign-extended u-field (spec §4.E).
func (r *Resolver) GetImmediateOperand(instr Instruction) word.Word {
	return instr.ImmediateValue()
}

// GetJumpOperand resolves the effective jump target as an absolute PC
// within the currently based instruction bank, applying indexing when
// the x-field is nonzero and the XI post-increment when H=1 (spec §4.E).
func (r *Resolver) GetJumpOperand(instr Instruction, extendedBaseReg int, accessKey uint8) (uint32, error) {
	disp := r.applyIndexing(instr)
	baseReg := r.baseRegisterFor(instr, extendedBaseReg)
	bd, void := r.Regs.GetBasePointer(baseReg)
	if void {
		return 0, addr.Exception{Reason: addr.BDTypeInvalid, Usage: addr.Jump}
	}
	if !withinLimits(bd, disp) {
		return 0, addr.Exception{Reason: addr.OutsideLimits, Usage: addr.Jump}
	}
	if !addr.CheckAccessLock(bd.AccessLock, accessKey) {
		return 0, addr.Exception{Reason: addr.AccessViolation, Usage: addr.Jump}
	}
	return disp, nil
}

// RCSPush pushes value onto the return-control stack, pre-decrementing
// the stack pointer.
func (r *Resolver) RCSPush(value word.Word) error {
	r.RCSTop--
	va := addr.VirtualAddress{Level: r.RCSBank.Level, BDI: r.RCSBank.BDI, Offset: r.RCSTop}
	res, err := r.Trans.Translate(va, addr.Write, 0)
	if err != nil {
		return err
	}
	return r.Mem.WriteAbsolute(r.UPI, res.Absolute, value)
}

// RCSPop pops and returns the top of the return-control stack.
func (r *Resolver) RCSPop() (word.Word, error) {
	va := addr.VirtualAddress{Level: r.RCSBank.Level, BDI: r.RCSBank.BDI, Offset: r.RCSTop}
	res, err := r.Trans.Translate(va, addr.Read, 0)
	if err != nil {
		return 0, err
	}
	v, err := r.Mem.ReadAbsolute(r.UPI, res.Absolute)
	if err != nil {
		return 0, err
	}
	r.RCSTop++
	return v, nil
}

// BankNameFromOperand extracts the (L,BDI) bank-name pair from an
// operand word the way LBN and relative addressing instructions read
// it: L in bits 0-2 of H1's upper bits, BDI in the remainder — mirrored
// from the PAR/BD addressing convention (spec §4.D step 1, §4.G's LBN
// contract).
func BankNameFromOperand(v word.Word) (level uint8, bdi uint16) {
	level = uint8((v >> 33) & 0x7)
	bdi = uint16((v >> 18) & 0x7FFF)
	return
}
