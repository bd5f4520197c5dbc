package cpu

import (
	"testing"

	"github.com/rcornwell/ux2200/emu/addr"
	"github.com/rcornwell/ux2200/emu/dayclock"
	"github.com/rcornwell/ux2200/emu/interrupt"
	"github.com/rcornwell/ux2200/emu/operand"
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
	"github.com/rcornwell/ux2200/emu/upi"
	"github.com/rcornwell/ux2200/emu/word"
)

// newTestCPU builds a processor with an instruction bank at (0,10)
// based through register 0, the base extendedBase resolves every
// extended-mode operand through.
func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	mem := storage.New(1 << 16)
	trans := addr.New(mem, 0)
	trans.SetBDTBase(0, 0x1000)

	bd := register.BankDescriptor{
		Type:        register.ExtendedMode,
		BaseAddress: 0x2000,
		LowerLimit:  0,
		UpperLimit:  4096,
	}
	if err := trans.StoreBD(0, 10, bd); err != nil {
		t.Fatalf("StoreBD: %v", err)
	}

	c := New(0, mem, trans, dayclock.New(), upi.NewComplex())
	c.Regs.SetBasePointer(0, bd)
	c.Regs.PAR = register.ProgramAddress{Level: 0, BDI: 10, PC: 0}
	c.Start()
	return c
}

func encodeInstr(f, a, x uint8, h, i bool, u uint32) word.Word {
	v := uint64(f&0x3F) << 30
	v |= uint64(a&0xF) << 22
	v |= uint64(x&0xF) << 18
	if h {
		v |= 1 << 17
	}
	if i {
		v |= 1 << 16
	}
	v |= uint64(u & 0xFFFF)
	return word.Word(v)
}

func TestHaltOnIllegalZeroWord(t *testing.T) {
	c := newTestCPU(t)
	if err := c.Mem.WriteAbsolute(0, 0x2000, 0); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}

	c.Step()

	if c.GetStopReason() != IllegalOperation {
		t.Errorf("stop reason = %v, want IllegalOperation", c.GetStopReason())
	}
	if c.GetStopDetail() != illegalOperationISW {
		t.Errorf("stop detail = %#o, want %#o", c.GetStopDetail(), illegalOperationISW)
	}
}

func TestLXIRoundTrip(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetX(5, word.Word(0123456))
	instr := operand.Instruction{F: fLXI, A: 2, U: 5}

	if irq := c.table[fLXI](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}

	if got := word.Truncate18(c.Regs.XI(2)); got != 0123456 {
		t.Errorf("XI(2) = %#o, want %#o", got, 0123456)
	}
	if c.Regs.XM(2) != 0 {
		t.Errorf("XM(2) should be untouched, got %#o", c.Regs.XM(2))
	}
}

func TestAndStoresIntoNextRegister(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetA(4, 0o170)
	c.Regs.SetX(6, 0o154)
	instr := operand.Instruction{F: fAnd, A: 4, U: 6}

	if irq := c.table[fAnd](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}

	want := word.Word(0o170 & 0o154)
	if got := c.Regs.A(5); got != want {
		t.Errorf("A(5) = %#o, want %#o", got, want)
	}
	if got := c.Regs.A(4); got != 0o170 {
		t.Errorf("A(4) should be unchanged, got %#o", got)
	}
}

func TestDSAPreservesSignAcrossDoubleShift(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetA(0, word.NegZero) // Hi = -0: negative double value.
	c.Regs.SetA(1, word.Mask&^1)
	c.Regs.SetX(3, 4) // shift count.
	instr := operand.Instruction{F: fDSA, A: 0, U: 3}

	if irq := c.table[fDSA](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}

	if !word.IsNegative(c.Regs.A(0)) {
		t.Errorf("shifted result lost its sign: A(0)=%#o", c.Regs.A(0))
	}
}

func TestLBNShortCircuitForBankName(t *testing.T) {
	c := newTestCPU(t)
	// A bank-name operand: L=0, BDI=5 < 32, so Translate never runs.
	v := word.Word(5) << 18
	c.Regs.SetX(7, v)
	instr := operand.Instruction{F: fLBN, A: 1, U: 7}

	c.jumped, c.extraSkip = false, false
	if irq := c.table[fLBN](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}

	if !c.extraSkip {
		t.Errorf("LBN on a bank name should request the extra skip")
	}
	if got := word.Truncate18(c.Regs.XI(1)); got != word.Truncate18(word.Extract(v, word.H1)) {
		t.Errorf("XI(1) = %#o, want the H1 field of the operand", got)
	}
}

func TestAAIJEnablesDeferrableAndJumps(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.DR.DeferrableInterruptEnabled = false
	instr := operand.Instruction{F: fAAIJ, U: 42}

	c.jumped = false
	if irq := c.table[fAAIJ](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}

	if !c.Regs.DR.DeferrableInterruptEnabled {
		t.Errorf("AAIJ should enable deferrable interrupts")
	}
	if !c.jumped {
		t.Errorf("AAIJ should request a jump")
	}
	if c.Regs.PAR.PC != 42 {
		t.Errorf("PAR.PC = %d, want 42", c.Regs.PAR.PC)
	}
}

func TestRMDRejectsInsufficientPrivilegeWithNoSideEffect(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.DR.ProcessorPrivilege = 3
	c.Regs.SetR(0, 0o111)
	c.Regs.SetR(1, 0o222)
	instr := operand.Instruction{F: fRMD, A: 0}

	irq := c.table[fRMD](c, instr)
	if irq == nil {
		t.Fatalf("expected an InvalidInstruction interrupt")
	}
	if irq.Class != interrupt.InvalidInstruction || irq.SubReason != interrupt.InvalidProcessorPrivilege {
		t.Errorf("got %+v, want InvalidInstruction/InvalidProcessorPrivilege", irq)
	}
	if c.Regs.R(0) != 0o111 || c.Regs.R(1) != 0o222 {
		t.Errorf("privilege check must not touch registers on failure")
	}
}

func TestRMDReadsSplitAcrossTwoRegisters(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.DR.ProcessorPrivilege = 2
	instr := operand.Instruction{F: fRMD, A: 0}

	if irq := c.table[fRMD](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}
	if c.Regs.R(0) > 0x1F {
		t.Errorf("R(0) = %#o, want only the high 5 bits of the 41-bit result", c.Regs.R(0))
	}
	// Two back-to-back reads must differ (dayclock uniqueness counter).
	first := c.Regs.R(1)
	if irq := c.table[fRMD](c, instr); irq != nil {
		t.Fatalf("unexpected interrupt: %+v", irq)
	}
	if c.Regs.R(1) == first {
		t.Errorf("consecutive RMD reads returned identical low words")
	}
}

func TestAddressingFaultPreservesFaultingPAR(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetBasePointerVoid(0) // Base register 0 is void: every storage operand fails.
	instrWord := encodeInstr(fLR, 1, 0, false, false, 200)
	if err := c.Mem.WriteAbsolute(0, 0x2000, instrWord); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}

	c.Step()

	if !c.Interrupts.Any() {
		t.Fatalf("expected a posted interrupt")
	}
	irq, ok := c.Interrupts.Highest(false)
	if !ok {
		t.Fatalf("expected an eligible interrupt")
	}
	if irq.FaultLevel != 0 || irq.FaultBDI != 10 {
		t.Errorf("fault (L,BDI) = (%d,%d), want (0,10): PAR must point at the faulting instruction", irq.FaultLevel, irq.FaultBDI)
	}
}

func TestOperandAccessLockRejectsMismatchedKey(t *testing.T) {
	c := newTestCPU(t)
	locked := register.BankDescriptor{
		Type:        register.ExtendedMode,
		BaseAddress: 0x2000,
		LowerLimit:  0,
		UpperLimit:  4096,
		AccessLock:  0x42,
	}
	c.Regs.SetBasePointer(0, locked)
	c.Regs.IKR.AccessKey = 0x43
	instr := operand.Instruction{F: fLR, A: 1, U: 300}

	irq := c.table[fLR](c, instr)
	if irq == nil {
		t.Fatalf("expected an addressing exception for a mismatched access key")
	}
	if irq.Class != interrupt.AddressingException {
		t.Errorf("got %+v, want AddressingException", irq)
	}

	c.Regs.IKR.AccessKey = 0x42
	if irq := c.table[fLR](c, instr); irq != nil {
		t.Errorf("a matching access key should not raise an exception, got %+v", irq)
	}
}

func TestUPISignalDeliveredAsInterrupt(t *testing.T) {
	c := newTestCPU(t)
	c.Signals.Send(c.UPI, upi.Signal{From: 1, Kind: upi.Normal, Data: 0xABC})

	// drainSignals is Step's first action; call it directly so the
	// drained signal can be inspected before Step's own Highest/Deliver
	// call would otherwise consume it.
	c.drainSignals()

	if !c.Interrupts.Any() {
		t.Fatalf("expected the drained signal to be posted as a pending interrupt")
	}
	irq, ok := c.Interrupts.Highest(true)
	if !ok {
		t.Fatalf("expected an eligible interrupt")
	}
	if irq.Class != interrupt.UPINormal {
		t.Errorf("got class %v, want UPINormal", irq.Class)
	}
	if irq.SSF != 1 || irq.ISW0 != 0xABC {
		t.Errorf("got SSF=%d ISW0=%#x, want SSF=1 ISW0=0xabc", irq.SSF, irq.ISW0)
	}
}

func TestStepDeliversDrainedUPISignal(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.DR.DeferrableInterruptEnabled = true
	preStep := c.Regs.PAR
	c.Signals.Send(c.UPI, upi.Signal{From: 2, Kind: upi.Initial, Data: 7})

	c.Step()

	if c.Regs.PAR.BDI == preStep.BDI {
		t.Errorf("expected Step to deliver the drained signal and load PAR from its vector, PAR still %+v", c.Regs.PAR)
	}
	if c.Interrupts.Any() {
		t.Errorf("the drained signal should have been consumed by delivery")
	}
	frame, ok := c.Stack.Pop()
	if !ok {
		t.Fatalf("expected Deliver to have pushed a control-stack frame")
	}
	if frame.PAR != preStep {
		t.Errorf("pushed frame.PAR = %+v, want the pre-delivery PAR %+v", frame.PAR, preStep)
	}
}

func TestUnconditionalJumpSuppressesNormalAdvance(t *testing.T) {
	c := newTestCPU(t)
	w := encodeInstr(fJ, 0, 0, false, false, 99)
	if err := c.Mem.WriteAbsolute(0, 0x2000, w); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}

	c.Step()

	if c.Regs.PAR.PC != 99 {
		t.Errorf("PAR.PC = %d, want 99 (jump target, no extra +1)", c.Regs.PAR.PC)
	}
}

func TestConditionalJumpFallsThroughAdvancesByOne(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetA(0, 5) // nonzero, positive.
	w := encodeInstr(fJZ, 0, 0, false, false, 99)
	if err := c.Mem.WriteAbsolute(0, 0x2000, w); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}

	c.Step()

	if c.Regs.PAR.PC != 1 {
		t.Errorf("PAR.PC = %d, want 1 (fell through)", c.Regs.PAR.PC)
	}
}

func TestStoreThenLoadRoundTrip(t *testing.T) {
	c := newTestCPU(t)
	c.Regs.SetA(3, 0o123456)
	store := encodeInstr(fSTA, 3, 0, false, false, 300)
	load := encodeInstr(fLA, 4, 0, false, false, 300)
	if err := c.Mem.WriteAbsolute(0, 0x2000, store); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}
	if err := c.Mem.WriteAbsolute(0, 0x2001, load); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}

	c.Step()
	c.Step()

	if got := c.Regs.A(4); got != 0o123456 {
		t.Errorf("A(4) = %#o, want %#o", got, 0o123456)
	}
}
