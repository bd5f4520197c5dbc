package addr

import (
	"fmt"

	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
	"github.com/rcornwell/ux2200/emu/word"
)

// Usage names why an address is being translated; gate banks are only a
// valid target for GateCall, and access checks distinguish read/write.
type Usage int

const (
	Read Usage = iota
	Write
	Execute
	Jump
	GateCall
)

// MaxIndirectDepth bounds indirect-bank chain resolution (spec invariant:
// "An indirect BD chain resolves in ≤ a fixed depth (architectural max
// 7)").
const MaxIndirectDepth = 7

// Reason enumerates why translation failed, carried on an
// AddressingException so the interrupt machinery can report it.
type Reason int

const (
	BDTypeInvalid Reason = iota
	OutsideLimits
	AccessViolation
	GeneralFault
	IndirectBankError
)

func (r Reason) String() string {
	switch r {
	case BDTypeInvalid:
		return "BDTypeInvalid"
	case OutsideLimits:
		return "OutsideLimits"
	case AccessViolation:
		return "AccessViolation"
	case GeneralFault:
		return "GeneralFault"
	case IndirectBankError:
		return "IndirectBankError"
	default:
		return "Unknown"
	}
}

// Exception is the addressing-exception raised on a failed translation,
// carrying the faulting virtual address for diagnosis.
type Exception struct {
	Reason Reason
	Level  uint8
	BDI    uint16
	Usage  Usage
}

func (e Exception) Error() string {
	return fmt.Sprintf("addressing exception: %s at L=%d,BDI=%#o (usage %d)", e.Reason, e.Level, e.BDI, e.Usage)
}

// VirtualAddress is an (L, BDI, offset) triple.
type VirtualAddress struct {
	Level  uint8
	BDI    uint16
	Offset uint32
}

// Translator resolves virtual addresses against bank descriptor tables
// held in main storage. One Translator instance is owned by each
// instruction processor.
type Translator struct {
	mem *storage.MSP
	upi uint16

	// BDTBase[level] is the absolute word offset of level L's bank
	// descriptor table, analogous to the teacher's segment/page table
	// base control registers (emu/cpu/cpudefs.go's segAddr).
	BDTBase [8]uint32
}

// New returns a translator reading BDTs from mem on behalf of upi.
func New(mem *storage.MSP, upi uint16) *Translator {
	return &Translator{mem: mem, upi: upi}
}

// SetBDTBase installs the absolute base address of level L's bank
// descriptor table.
func (t *Translator) SetBDTBase(level uint8, base uint32) {
	t.BDTBase[level&0x7] = base
}

// Result is the outcome of a successful translation.
type Result struct {
	Absolute uint32
	BD       register.BankDescriptor
}

// IsBankName reports whether (L,BDI) is a bank name rather than a
// descriptor reference (spec §4.D step 1): L=0 and BDI<32.
func IsBankName(level uint8, bdi uint16) bool {
	return level == 0 && bdi < 32
}

// FetchBD reads the 8-word bank descriptor for (level, bdi) out of main
// storage, without following indirect chains.
func (t *Translator) FetchBD(level uint8, bdi uint16) (register.BankDescriptor, error) {
	base := t.BDTBase[level&0x7]
	addr := base + uint32(bdi)*BDWords
	var words [BDWords]word.Word
	for i := 0; i < BDWords; i++ {
		v, err := t.mem.ReadAbsolute(t.upi, addr+uint32(i))
		if err != nil {
			return register.BankDescriptor{}, err
		}
		words[i] = v
	}
	return DecodeBD(words), nil
}

// StoreBD writes bd into the bank descriptor table for (level, bdi),
// the storage-side half of `load_bank_descriptor` named in spec §6.
func (t *Translator) StoreBD(level uint8, bdi uint16, bd register.BankDescriptor) error {
	base := t.BDTBase[level&0x7]
	addr := base + uint32(bdi)*BDWords
	words := EncodeBD(bd)
	for i, w := range words {
		if err := t.mem.WriteAbsolute(t.upi, addr+uint32(i), w); err != nil {
			return err
		}
	}
	return nil
}

// Translate resolves a virtual address to an absolute offset, following
// indirect bank chains up to MaxIndirectDepth and performing the limit
// and access checks of spec §4.D.
func (t *Translator) Translate(va VirtualAddress, usage Usage, accessKey uint8) (Result, error) {
	level, bdi := va.Level, va.BDI

	var bd register.BankDescriptor
	for depth := 0; ; depth++ {
		if depth > MaxIndirectDepth {
			return Result{}, Exception{Reason: IndirectBankError, Level: level, BDI: bdi, Usage: usage}
		}
		fetched, err := t.FetchBD(level, bdi)
		if err != nil {
			return Result{}, err
		}
		bd = fetched

		if bd.GeneralFault {
			return Result{}, Exception{Reason: GeneralFault, Level: level, BDI: bdi, Usage: usage}
		}

		if bd.Type != register.Indirect {
			break
		}
		if !CheckAccessLock(bd.AccessLock, accessKey) {
			return Result{}, Exception{Reason: AccessViolation, Level: level, BDI: bdi, Usage: usage}
		}
		level, bdi = bd.TargetLevel, bd.TargetBDI
	}

	if bd.Type == register.Gate && usage != GateCall {
		return Result{}, Exception{Reason: BDTypeInvalid, Level: level, BDI: bdi, Usage: usage}
	}
	if bd.Type == register.QueueRepository {
		return Result{}, Exception{Reason: BDTypeInvalid, Level: level, BDI: bdi, Usage: usage}
	}

	lower := bd.LowerLimit
	upper := bd.UpperLimit
	if bd.Type == register.ExtendedMode {
		lower *= 512
	}
	if va.Offset < lower || va.Offset > upper {
		return Result{}, Exception{Reason: OutsideLimits, Level: level, BDI: bdi, Usage: usage}
	}

	if !CheckAccessLock(bd.AccessLock, accessKey) {
		return Result{}, Exception{Reason: AccessViolation, Level: level, BDI: bdi, Usage: usage}
	}

	absolute := bd.BaseAddress + va.Offset - bd.Displacement
	return Result{Absolute: absolute, BD: bd}, nil
}

// CheckAccessLock enforces the access-lock/access-key comparison named
// in spec §4.D step 3/7. Key 0 is the master key and always passes; a
// matching ring (low byte) also passes. This is the open-question
// resolution recorded in DESIGN.md: the reference's full domain/ring
// algebra is reduced here to a single equality check against the
// instruction processor's access key. Exported so emu/operand's
// GetOperand/PutOperand/GetJumpOperand fast path enforces the same
// check Translate does, instead of only checking limits.
func CheckAccessLock(lock uint32, key uint8) bool {
	if key == 0 {
		return true
	}
	return uint8(lock&0xFF) == key
}
