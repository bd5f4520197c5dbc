package console

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcornwell/ux2200/emu/addr"
	"github.com/rcornwell/ux2200/emu/cpu"
	"github.com/rcornwell/ux2200/emu/dayclock"
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
	"github.com/rcornwell/ux2200/emu/upi"
	"github.com/rcornwell/ux2200/emu/word"
)

func word0(v uint64) word.Word { return word.Word(v) & word.Mask }

func newTestConsole(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	mem := storage.New(1 << 16)
	trans := addr.New(mem, 0)
	trans.SetBDTBase(0, 0x1000)
	bd := register.BankDescriptor{Type: register.ExtendedMode, BaseAddress: 0x2000, UpperLimit: 4096}
	if err := trans.StoreBD(0, 10, bd); err != nil {
		t.Fatalf("StoreBD: %v", err)
	}
	c := cpu.New(0, mem, trans, dayclock.New(), upi.NewComplex())
	c.Regs.SetBasePointer(0, bd)
	c.Regs.PAR = register.ProgramAddress{Level: 0, BDI: 10, PC: 0}

	var out bytes.Buffer
	return New(c, &out), &out
}

func TestStartStopRoundTrip(t *testing.T) {
	con, _ := newTestConsole(t)
	if _, err := ProcessCommand("start", con); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !con.CPU.Running() {
		t.Errorf("processor should be running after start")
	}
	if _, err := ProcessCommand("stop", con); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if con.CPU.Running() {
		t.Errorf("processor should not be running after stop")
	}
}

func TestAbbreviationMatching(t *testing.T) {
	con, out := newTestConsole(t)
	if _, err := ProcessCommand("sta", con); err != nil {
		t.Fatalf("abbreviated start: %v", err)
	}
	if !con.CPU.Running() {
		t.Errorf("abbreviated start should have started the processor")
	}
	if _, err := ProcessCommand("get_stop_reason", con); err != nil {
		t.Fatalf("get_stop_reason: %v", err)
	}
	if !strings.Contains(out.String(), "Running") {
		t.Errorf("output = %q, want it to mention Running", out.String())
	}
}

func TestTooShortAbbreviationErrors(t *testing.T) {
	con, _ := newTestConsole(t)
	// "st" is shorter than the minimum abbreviation length of every
	// command it prefixes (start/stop both require 3), so it matches
	// nothing rather than resolving ambiguously.
	if _, err := ProcessCommand("st", con); err == nil {
		t.Errorf("expected a command-not-found error")
	}
}

func TestReadWriteRegisterRoundTrip(t *testing.T) {
	con, out := newTestConsole(t)
	if _, err := ProcessCommand("write_register a 3 0123456", con); err != nil {
		t.Fatalf("write_register: %v", err)
	}
	out.Reset()
	if _, err := ProcessCommand("read_register a 3", con); err != nil {
		t.Fatalf("read_register: %v", err)
	}
	if !strings.Contains(out.String(), "0123456") {
		t.Errorf("output = %q, want it to contain 0123456", out.String())
	}
}

func TestExamineDepositRoundTrip(t *testing.T) {
	con, out := newTestConsole(t)
	if _, err := ProcessCommand("deposit 0x2000 0777", con); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	out.Reset()
	if _, err := ProcessCommand("examine 0x2000", con); err != nil {
		t.Fatalf("examine: %v", err)
	}
	if !strings.Contains(out.String(), "777") {
		t.Errorf("output = %q, want it to contain 777", out.String())
	}
}

func TestUnassembleRendersMnemonic(t *testing.T) {
	con, out := newTestConsole(t)
	// f=2 is LR; a=5, u=0o100.
	instr := uint64(2)<<30 | uint64(5)<<22 | 0o100
	if err := con.CPU.Mem.WriteAbsolute(con.CPU.UPI, 0x2000, word0(instr)); err != nil {
		t.Fatalf("WriteAbsolute: %v", err)
	}
	if _, err := ProcessCommand("unassemble 0x2000", con); err != nil {
		t.Fatalf("unassemble: %v", err)
	}
	if !strings.Contains(out.String(), "LR") || !strings.Contains(out.String(), "A5") {
		t.Errorf("output = %q, want it to mention LR and A5", out.String())
	}
}

func TestUnknownCommandErrors(t *testing.T) {
	con, _ := newTestConsole(t)
	if _, err := ProcessCommand("nonsense", con); err == nil {
		t.Errorf("expected an error for an unknown command")
	}
}

func TestIPLInstallsModuleAndStarts(t *testing.T) {
	con, _ := newTestConsole(t)
	path := filepath.Join(t.TempDir(), "boot.toml")
	content := `
[processor]
start_level = 0
start_bdi = 10
start_pc = 5

[[bdt]]
level = 0
base = 0x1000

[[bank]]
level = 0
bdi = 10
type = "extended"
base_address = 0x2000
upper_limit = 4096
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := ProcessCommand("ipl "+path, con); err != nil {
		t.Fatalf("ipl: %v", err)
	}
	if con.CPU.Regs.PAR.PC != 5 {
		t.Errorf("PAR.PC = %d, want 5 after ipl", con.CPU.Regs.PAR.PC)
	}
	if !con.CPU.Running() {
		t.Errorf("ipl should leave the processor running")
	}
}

func TestQuitReportsQuit(t *testing.T) {
	con, _ := newTestConsole(t)
	quit, err := ProcessCommand("quit", con)
	if err != nil {
		t.Fatalf("quit: %v", err)
	}
	if !quit {
		t.Errorf("quit command should report quit=true")
	}
}
