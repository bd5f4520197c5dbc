package addr

import (
	"testing"

	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	mem := storage.New(1 << 16)
	return New(mem, 0)
}

func storeBD(t *testing.T, tr *Translator, level uint8, bdi uint16, bd register.BankDescriptor) {
	t.Helper()
	if err := tr.StoreBD(level, bdi, bd); err != nil {
		t.Fatalf("StoreBD(%d,%d): %v", level, bdi, err)
	}
}

func TestTranslateDirectBank(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{
		Type:        register.ExtendedMode,
		BaseAddress: 0x500,
		LowerLimit:  0,
		UpperLimit:  100,
	}
	storeBD(t, tr, 0, 5, bd)

	res, err := tr.Translate(VirtualAddress{Level: 0, BDI: 5, Offset: 10}, Read, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Absolute != 0x500+10 {
		t.Errorf("absolute = %#x, want %#x", res.Absolute, 0x500+10)
	}
}

func TestTranslateExtendedModeLowerLimitIsBlocks(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{
		Type:        register.ExtendedMode,
		BaseAddress: 0,
		LowerLimit:  1, // one 512-word block.
		UpperLimit:  1024,
	}
	storeBD(t, tr, 0, 1, bd)

	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 1, Offset: 511}, Read, 0); err == nil {
		t.Errorf("offset 511 should fall below a lower limit of one 512-word block")
	}
	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 1, Offset: 512}, Read, 0); err != nil {
		t.Errorf("offset 512 should satisfy a lower limit of one 512-word block: %v", err)
	}
}

func TestTranslateOutsideLimits(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{Type: register.BasicMode, BaseAddress: 0, LowerLimit: 0, UpperLimit: 10}
	storeBD(t, tr, 0, 2, bd)

	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 2, Offset: 11}, Read, 0); err == nil {
		t.Errorf("expected an outside-limits error")
	} else if exc, ok := err.(Exception); !ok || exc.Reason != OutsideLimits {
		t.Errorf("got %v, want an OutsideLimits Exception", err)
	}
}

func TestTranslateGeneralFault(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{Type: register.BasicMode, GeneralFault: true}
	storeBD(t, tr, 0, 3, bd)

	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 3}, Read, 0); err == nil {
		t.Errorf("expected a general-fault error")
	} else if exc, ok := err.(Exception); !ok || exc.Reason != GeneralFault {
		t.Errorf("got %v, want a GeneralFault Exception", err)
	}
}

func TestTranslateGateRejectedForNonGateCallUsage(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{Type: register.Gate, UpperLimit: 100}
	storeBD(t, tr, 0, 4, bd)

	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 4}, Read, 0); err == nil {
		t.Errorf("a Gate bank should reject a non-GateCall usage")
	}
	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 4}, GateCall, 0); err != nil {
		t.Errorf("a Gate bank should accept GateCall usage: %v", err)
	}
}

func TestTranslateQueueRepositoryAlwaysRejected(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{Type: register.QueueRepository, UpperLimit: 100}
	storeBD(t, tr, 0, 6, bd)

	if _, err := tr.Translate(VirtualAddress{Level: 0, BDI: 6}, Read, 0); err == nil {
		t.Errorf("a QueueRepository bank should never be a valid translation target")
	}
}

func TestTranslateIndirectChainResolves(t *testing.T) {
	tr := newTranslator(t)
	target := register.BankDescriptor{Type: register.ExtendedMode, BaseAddress: 0x900, UpperLimit: 100}
	storeBD(t, tr, 0, 20, target)

	indirect := register.BankDescriptor{Type: register.Indirect, TargetLevel: 0, TargetBDI: 20}
	storeBD(t, tr, 0, 21, indirect)

	res, err := tr.Translate(VirtualAddress{Level: 0, BDI: 21, Offset: 5}, Read, 0)
	if err != nil {
		t.Fatalf("unexpected error resolving one indirect hop: %v", err)
	}
	if res.Absolute != 0x900+5 {
		t.Errorf("absolute = %#x, want %#x", res.Absolute, 0x900+5)
	}
}

func TestTranslateIndirectChainTooDeep(t *testing.T) {
	tr := newTranslator(t)

	const chainLen = MaxIndirectDepth + 2
	for i := 0; i < chainLen; i++ {
		bdi := uint16(30 + i)
		bd := register.BankDescriptor{Type: register.Indirect, TargetLevel: 0, TargetBDI: bdi + 1}
		storeBD(t, tr, 0, bdi, bd)
	}
	final := register.BankDescriptor{Type: register.ExtendedMode, BaseAddress: 0, UpperLimit: 100}
	storeBD(t, tr, 0, uint16(30+chainLen), final)

	_, err := tr.Translate(VirtualAddress{Level: 0, BDI: 30}, Read, 0)
	if err == nil {
		t.Fatalf("expected an indirect-chain-too-deep error")
	}
	exc, ok := err.(Exception)
	if !ok || exc.Reason != IndirectBankError {
		t.Errorf("got %v, want an IndirectBankError Exception", err)
	}
}

func TestTranslateIndirectChainAtMaxDepthSucceeds(t *testing.T) {
	tr := newTranslator(t)

	for i := 0; i < MaxIndirectDepth; i++ {
		bdi := uint16(40 + i)
		bd := register.BankDescriptor{Type: register.Indirect, TargetLevel: 0, TargetBDI: bdi + 1}
		storeBD(t, tr, 0, bdi, bd)
	}
	final := register.BankDescriptor{Type: register.ExtendedMode, BaseAddress: 0x300, UpperLimit: 100}
	storeBD(t, tr, 0, uint16(40+MaxIndirectDepth), final)

	res, err := tr.Translate(VirtualAddress{Level: 0, BDI: 40, Offset: 1}, Read, 0)
	if err != nil {
		t.Fatalf("a chain of exactly %d indirect hops should resolve: %v", MaxIndirectDepth, err)
	}
	if res.Absolute != 0x300+1 {
		t.Errorf("absolute = %#x, want %#x", res.Absolute, 0x300+1)
	}
}

func TestCheckAccessLockMasterKey(t *testing.T) {
	if !CheckAccessLock(0xFF, 0) {
		t.Errorf("key 0 should always pass regardless of lock value")
	}
}

func TestCheckAccessLockMatchingRing(t *testing.T) {
	if !CheckAccessLock(0x42, 0x42) {
		t.Errorf("a matching low byte should pass")
	}
	if CheckAccessLock(0x42, 0x43) {
		t.Errorf("a mismatched low byte should fail")
	}
}

func TestIsBankName(t *testing.T) {
	if !IsBankName(0, 31) {
		t.Errorf("level 0, bdi 31 should be a bank name")
	}
	if IsBankName(0, 32) {
		t.Errorf("level 0, bdi 32 should not be a bank name")
	}
	if IsBankName(1, 0) {
		t.Errorf("level 1 should never be a bank name")
	}
}

func TestFetchBDStoreBDRoundTrip(t *testing.T) {
	tr := newTranslator(t)
	bd := register.BankDescriptor{
		Type:               register.BasicMode,
		AccessLock:         0x123,
		GeneralPermissions: 0x1FF,
		SpecialPermissions: 0x2AAAA,
		LowerLimit:         7,
		UpperLimit:         9000,
		BaseAddress:        0x10000,
		TargetLevel:        3,
		TargetBDI:          100,
	}
	storeBD(t, tr, 2, 50, bd)

	got, err := tr.FetchBD(2, 50)
	if err != nil {
		t.Fatalf("FetchBD: %v", err)
	}
	if got != bd {
		t.Errorf("round-tripped BD = %+v, want %+v", got, bd)
	}
}
