/*
   Operator console: a liner-backed REPL over the processor's
   start/stop/examine/deposit/register surface.

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

// Package console implements the operator-console interface spec §6
// names by operation ({start, stop, clear, get_stop_reason,
// get_stop_detail, read_register, write_register}) plus an
// examine/deposit/ipl/continue surface, dispatched by abbreviation the
// way the teacher's command/parser matches cmdList entries by minimum
// prefix length. The REPL loop itself is adapted from
// command/reader.ConsoleReader's liner usage; the tokenizer is adapted
// from command/parser's cmdLine.
package console

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/peterh/liner"

	"github.com/rcornwell/ux2200/emu/cpu"
	"github.com/rcornwell/ux2200/emu/disassemble"
	"github.com/rcornwell/ux2200/emu/loader"
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/word"
)

// Console binds the command surface to one processor.
type Console struct {
	CPU *cpu.CPU
	Out io.Writer
}

// New returns a console driving c, printing command output to out.
func New(c *cpu.CPU, out io.Writer) *Console {
	return &Console{CPU: c, Out: out}
}

type cmdLine struct {
	line string
	pos  int
}

func (l *cmdLine) skipSpace() {
	for l.pos < len(l.line) && unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
}

func (l *cmdLine) isEOL() bool {
	return l.pos >= len(l.line)
}

// getWord returns the next whitespace-delimited token, advancing past it.
func (l *cmdLine) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.line) && !unicode.IsSpace(rune(l.line[l.pos])) {
		l.pos++
	}
	return l.line[start:l.pos]
}

type cmd struct {
	name    string
	min     int
	process func(*cmdLine, *Console) (bool, error)
}

var cmdList = []cmd{
	{name: "start", min: 3, process: cmdStart},
	{name: "continue", min: 4, process: cmdStart},
	{name: "stop", min: 3, process: cmdStop},
	{name: "clear", min: 2, process: cmdStop},
	{name: "get_stop_reason", min: 9, process: cmdStopReason},
	{name: "get_stop_detail", min: 9, process: cmdStopDetail},
	{name: "read_register", min: 5, process: cmdReadRegister},
	{name: "write_register", min: 6, process: cmdWriteRegister},
	{name: "examine", min: 2, process: cmdExamine},
	{name: "deposit", min: 2, process: cmdDeposit},
	{name: "unassemble", min: 2, process: cmdUnassemble},
	{name: "ipl", min: 3, process: cmdIPL},
	{name: "quit", min: 4, process: cmdQuit},
}

// matchCommand reports whether command is a prefix of name; matchList
// checks the minimum abbreviation length.
func matchCommand(name string, command string) bool {
	if len(command) > len(name) {
		return false
	}
	return strings.HasPrefix(name, command)
}

func matchList(command string) []cmd {
	if command == "" {
		return nil
	}
	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m.name, command) && len(command) >= m.min {
			match = append(match, m)
		}
	}
	return match
}

// ProcessCommand executes one command line against c, returning quit=true
// for the "quit" command.
func ProcessCommand(commandLine string, c *Console) (bool, error) {
	line := &cmdLine{line: commandLine}
	command := line.getWord()
	if command == "" {
		return false, nil
	}

	match := matchList(strings.ToLower(command))
	switch len(match) {
	case 0:
		return false, errors.New("command not found: " + command)
	case 1:
		return match[0].process(line, c)
	default:
		return false, errors.New("ambiguous command: " + command)
	}
}

func cmdStart(_ *cmdLine, c *Console) (bool, error) {
	c.CPU.Start()
	return false, nil
}

func cmdStop(_ *cmdLine, c *Console) (bool, error) {
	c.CPU.ClearByOperator()
	return false, nil
}

func cmdStopReason(_ *cmdLine, c *Console) (bool, error) {
	fmt.Fprintln(c.Out, c.CPU.GetStopReason())
	return false, nil
}

func cmdStopDetail(_ *cmdLine, c *Console) (bool, error) {
	fmt.Fprintf(c.Out, "%#o\n", c.CPU.GetStopDetail())
	return false, nil
}

var registerSets = map[string]func(*register.File, int) (uint64, bool){
	"a": func(f *register.File, n int) (uint64, bool) { return uint64(f.A(n)), true },
	"x": func(f *register.File, n int) (uint64, bool) { return uint64(f.X(n)), true },
	"r": func(f *register.File, n int) (uint64, bool) { return uint64(f.R(n)), true },
}

func parseRegisterArgs(line *cmdLine) (string, int, error) {
	set := strings.ToLower(line.getWord())
	numStr := line.getWord()
	n, err := strconv.ParseUint(numStr, 10, 8)
	if err != nil {
		return "", 0, fmt.Errorf("invalid register number %q: %w", numStr, err)
	}
	if _, ok := registerSets[set]; !ok {
		return "", 0, fmt.Errorf("unknown register set %q (want a, x or r)", set)
	}
	return set, int(n), nil
}

func cmdReadRegister(line *cmdLine, c *Console) (bool, error) {
	set, n, err := parseRegisterArgs(line)
	if err != nil {
		return false, err
	}
	v, _ := registerSets[set](c.CPU.Regs, n)
	fmt.Fprintf(c.Out, "%s%d = %#o\n", set, n, v)
	return false, nil
}

func cmdWriteRegister(line *cmdLine, c *Console) (bool, error) {
	set, n, err := parseRegisterArgs(line)
	if err != nil {
		return false, err
	}
	valStr := line.getWord()
	v, err := strconv.ParseUint(valStr, 0, 64)
	if err != nil {
		return false, fmt.Errorf("invalid value %q: %w", valStr, err)
	}
	switch set {
	case "a":
		c.CPU.Regs.SetA(n, regWord(v))
	case "x":
		c.CPU.Regs.SetX(n, regWord(v))
	case "r":
		c.CPU.Regs.SetR(n, regWord(v))
	}
	return false, nil
}

func cmdExamine(line *cmdLine, c *Console) (bool, error) {
	addrStr := line.getWord()
	offset, err := strconv.ParseUint(addrStr, 0, 32)
	if err != nil {
		return false, fmt.Errorf("invalid address %q: %w", addrStr, err)
	}
	v, err := c.CPU.Mem.ReadAbsolute(c.CPU.UPI, uint32(offset))
	if err != nil {
		return false, err
	}
	fmt.Fprintf(c.Out, "%#o: %#o\n", offset, v)
	return false, nil
}

func cmdDeposit(line *cmdLine, c *Console) (bool, error) {
	addrStr := line.getWord()
	offset, err := strconv.ParseUint(addrStr, 0, 32)
	if err != nil {
		return false, fmt.Errorf("invalid address %q: %w", addrStr, err)
	}
	valStr := line.getWord()
	v, err := strconv.ParseUint(valStr, 0, 64)
	if err != nil {
		return false, fmt.Errorf("invalid value %q: %w", valStr, err)
	}
	return false, c.CPU.Mem.WriteAbsolute(c.CPU.UPI, uint32(offset), regWord(v))
}

// cmdUnassemble prints the mnemonic rendering of the instruction word at
// one absolute address, using the processor's current addressing mode
// (spec §6's console surface extended with a disassembly view, the
// operator-facing counterpart of emu/disassemble).
func cmdUnassemble(line *cmdLine, c *Console) (bool, error) {
	addrStr := line.getWord()
	offset, err := strconv.ParseUint(addrStr, 0, 32)
	if err != nil {
		return false, fmt.Errorf("invalid address %q: %w", addrStr, err)
	}
	v, err := c.CPU.Mem.ReadAbsolute(c.CPU.UPI, uint32(offset))
	if err != nil {
		return false, err
	}
	fmt.Fprintf(c.Out, "%#o: %s\n", offset, disassemble.Instruction(v, c.CPU.Regs.DR.BasicModeEnabled))
	return false, nil
}

// cmdIPL loads a module file, installs its bank table and vectors, and
// positions the processor at its boot PAR -- the console's equivalent of
// the teacher's "ipl <device>" command, generalized from booting off a
// device to booting off a loadable module file.
func cmdIPL(line *cmdLine, c *Console) (bool, error) {
	path := line.getWord()
	if path == "" {
		return false, errors.New("ipl requires a module file path")
	}
	mod, err := loader.LoadFile(path)
	if err != nil {
		return false, err
	}
	vectors, err := loader.Install(mod, c.CPU.Mem, c.CPU.Trans)
	if err != nil {
		return false, err
	}
	c.CPU.Vectors = vectors
	c.CPU.Regs.Reset()
	c.CPU.Regs.DR.ProcessorPrivilege = mod.Processor.Privilege
	c.CPU.Regs.PAR = register.ProgramAddress{
		Level: mod.Processor.StartLevel,
		BDI:   mod.Processor.StartBDI,
		PC:    mod.Processor.StartPC,
	}
	c.CPU.Start()
	return false, nil
}

func cmdQuit(_ *cmdLine, _ *Console) (bool, error) {
	return true, nil
}

// regWord truncates a parsed console literal to the 36-bit field width
// every register setter expects.
func regWord(v uint64) word.Word {
	return word.Word(v) & word.Mask
}

// Run drives the interactive REPL: prompt, read a line, dispatch it,
// repeat until "quit" or the prompt is aborted (mirrors
// command/reader.ConsoleReader).
func Run(c *Console) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		command, err := line.Prompt("ux2200> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			slog.Error("console: error reading line", "err", err)
			return
		}
		line.AppendHistory(command)
		quit, err := ProcessCommand(command, c)
		if err != nil {
			fmt.Fprintln(c.Out, "Error: "+err.Error())
		}
		if quit {
			return
		}
	}
}
