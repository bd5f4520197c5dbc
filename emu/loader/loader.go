/*
   Loadable-module loader: bank table, initial content and boot
   configuration, read from TOML.

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

// Package loader reads a loadable module — a boot configuration plus an
// array of banks (level, BDI, access permissions, initial content) and
// an interrupt vector table — from a TOML file and installs it against
// a processor's address-translation and storage layers. Adapted from
// the config-file half of the teacher's configuration handling
// (`config/configparser` parses SIMH-style device option lines; this
// module's bank table is a richer shape than a line parser can carry,
// so it follows lookbusy1344-arm_emulator's config.go TOML-into-typed-
// struct approach instead).
package loader

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/rcornwell/ux2200/emu/addr"
	"github.com/rcornwell/ux2200/emu/interrupt"
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
	"github.com/rcornwell/ux2200/emu/word"
)

// Module is the on-disk shape of a loadable module.
type Module struct {
	Processor BootConfig        `toml:"processor"`
	BDT       []BDTEntry        `toml:"bdt"`
	Banks     []BankSpec        `toml:"bank"`
	Vectors   []VectorSpec      `toml:"vector"`
}

// BootConfig names where the processor starts executing and its
// initial privilege, the boot-time counterpart of register.ProgramAddress
// and register.Designator.
type BootConfig struct {
	StartLevel uint8 `toml:"start_level"`
	StartBDI   uint16 `toml:"start_bdi"`
	StartPC    uint32 `toml:"start_pc"`
	Privilege  uint8  `toml:"privilege"`
}

// BDTEntry installs one level's bank-descriptor-table base address.
type BDTEntry struct {
	Level uint8  `toml:"level"`
	Base  uint32 `toml:"base"`
}

// BankSpec describes one bank descriptor plus its initial content, the
// concrete shape of spec §6's "array of banks... (L,BDI,
// access-permissions, initial-content)".
type BankSpec struct {
	Level uint8  `toml:"level"`
	BDI   uint16 `toml:"bdi"`

	Type               string `toml:"type"` // "extended", "basic", "gate", "indirect", "queue_repository", "queue"
	BaseAddress        uint32 `toml:"base_address"`
	LowerLimit         uint32 `toml:"lower_limit"`
	UpperLimit         uint32 `toml:"upper_limit"`
	AccessLock         uint32 `toml:"access_lock"`
	GeneralPermissions uint32 `toml:"general_permissions"`
	SpecialPermissions uint32 `toml:"special_permissions"`
	GeneralFault       bool   `toml:"general_fault"`
	TargetLevel        uint8  `toml:"target_level"` // Indirect/Gate only.
	TargetBDI          uint16 `toml:"target_bdi"`   // Indirect/Gate only.

	// Words is the bank's initial content, one octal-literal string per
	// 36-bit word starting at offset 0, e.g. "0123456701234".
	Words []string `toml:"words"`
}

// VectorSpec installs one interrupt class's entry point.
type VectorSpec struct {
	Class  string `toml:"class"`
	Level  uint8  `toml:"level"`
	BDI    uint16 `toml:"bdi"`
	Offset uint32 `toml:"offset"`
}

var bankTypes = map[string]register.BankType{
	"extended":          register.ExtendedMode,
	"basic":             register.BasicMode,
	"gate":              register.Gate,
	"indirect":          register.Indirect,
	"queue_repository":  register.QueueRepository,
	"queue":             register.Queue,
}

var classNames = map[string]interrupt.Class{
	"hardware_check":       interrupt.HardwareCheck,
	"machine_check":        interrupt.MachineCheck,
	"reference_violation":  interrupt.ReferenceViolation,
	"addressing_exception": interrupt.AddressingException,
	"arithmetic_exception": interrupt.ArithmeticException,
	"invalid_instruction":  interrupt.InvalidInstruction,
	"breakpoint":           interrupt.Breakpoint,
	"quantum_timer":        interrupt.QuantumTimer,
	"dayclock":             interrupt.Dayclock,
	"signal":               interrupt.Signal,
	"upi_initial":          interrupt.UPIInitial,
	"upi_normal":           interrupt.UPINormal,
	"io":                   interrupt.IO,
	"software_break":       interrupt.SoftwareBreak,
}

// LoadFile reads and parses a module from path.
func LoadFile(path string) (*Module, error) {
	var mod Module
	if _, err := toml.DecodeFile(path, &mod); err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	return &mod, nil
}

// bankDescriptor converts a BankSpec's TOML fields into the register
// file's BankDescriptor shape.
func bankDescriptor(spec BankSpec) (register.BankDescriptor, error) {
	typ, ok := bankTypes[spec.Type]
	if !ok {
		return register.BankDescriptor{}, fmt.Errorf("loader: bank (%d,%d): unknown type %q", spec.Level, spec.BDI, spec.Type)
	}
	return register.BankDescriptor{
		Type:               typ,
		AccessLock:         spec.AccessLock,
		GeneralPermissions: spec.GeneralPermissions,
		SpecialPermissions: spec.SpecialPermissions,
		LowerLimit:         spec.LowerLimit,
		UpperLimit:         spec.UpperLimit,
		BaseAddress:        spec.BaseAddress,
		GeneralFault:       spec.GeneralFault,
		TargetLevel:        spec.TargetLevel,
		TargetBDI:          spec.TargetBDI,
	}, nil
}

// Install writes every BDT base, bank descriptor and word of initial
// content from mod into mem/trans, and returns the populated interrupt
// vector table, the storage-side half of spec §6's `load_bank_descriptor`
// external-interface operation.
func Install(mod *Module, mem *storage.MSP, trans *addr.Translator) (interrupt.VectorTable, error) {
	var vectors interrupt.VectorTable

	for _, e := range mod.BDT {
		trans.SetBDTBase(e.Level, e.Base)
	}

	for _, spec := range mod.Banks {
		bd, err := bankDescriptor(spec)
		if err != nil {
			return vectors, err
		}
		if err := trans.StoreBD(spec.Level, spec.BDI, bd); err != nil {
			return vectors, fmt.Errorf("loader: storing bank (%d,%d): %w", spec.Level, spec.BDI, err)
		}
		if err := loadContent(mem, spec); err != nil {
			return vectors, err
		}
	}

	for _, v := range mod.Vectors {
		class, ok := classNames[v.Class]
		if !ok {
			return vectors, fmt.Errorf("loader: unknown interrupt class %q", v.Class)
		}
		vectors[class] = interrupt.Vector{Level: v.Level, BDI: v.BDI, Offset: v.Offset}
	}

	return vectors, nil
}

// loadContent writes spec.Words into mem starting at spec.BaseAddress,
// parsing each entry as an octal literal the way spec.md's worked
// examples render 36-bit words.
func loadContent(mem *storage.MSP, spec BankSpec) error {
	for i, s := range spec.Words {
		v, err := parseOctalWord(s)
		if err != nil {
			return fmt.Errorf("loader: bank (%d,%d) word %d: %w", spec.Level, spec.BDI, i, err)
		}
		if err := mem.WriteAbsolute(0, spec.BaseAddress+uint32(i), v); err != nil {
			return fmt.Errorf("loader: bank (%d,%d) word %d: %w", spec.Level, spec.BDI, i, err)
		}
	}
	return nil
}

func parseOctalWord(s string) (word.Word, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "%o", &v); err != nil {
		return 0, err
	}
	return word.Word(v) & word.Mask, nil
}
