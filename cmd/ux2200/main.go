/*
   Command-line entry point: run/ipl/examine subcommands wiring the
   loader, console, processor and storage layers together.

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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcornwell/ux2200/emu/addr"
	"github.com/rcornwell/ux2200/emu/console"
	"github.com/rcornwell/ux2200/emu/cpu"
	"github.com/rcornwell/ux2200/emu/dayclock"
	"github.com/rcornwell/ux2200/emu/loader"
	"github.com/rcornwell/ux2200/emu/register"
	"github.com/rcornwell/ux2200/emu/storage"
	"github.com/rcornwell/ux2200/emu/upi"
	"github.com/rcornwell/ux2200/util/logger"
)

// installLogger wires util/logger's slog.Handler in as the process-wide
// default, the way the teacher's main.go does: every package (cpu,
// console, ...) logs through slog.Default() without importing logger
// itself. logFile == "" logs only to stderr; debug records are written
// only to a log file, so stderr shows info and above.
func installLogger(logFile string) error {
	var file *os.File
	if logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			return fmt.Errorf("creating log file: %w", err)
		}
		file = f
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)
	debug := false
	handler := logger.NewHandler(file, &slog.HandlerOptions{Level: level, AddSource: false}, &debug)
	slog.SetDefault(slog.New(handler))
	return nil
}

// boot constructs a processor, installs mod against it, and positions
// PAR/privilege at the module's boot configuration. Shared by run and
// ipl so both start from identical state.
func boot(mod *loader.Module, memWords uint32) (*cpu.CPU, error) {
	mem := storage.New(memWords)
	trans := addr.New(mem, 0)

	vectors, err := loader.Install(mod, mem, trans)
	if err != nil {
		return nil, fmt.Errorf("installing module: %w", err)
	}

	c := cpu.New(0, mem, trans, dayclock.New(), upi.NewComplex())
	c.Vectors = vectors
	c.Regs.DR.ProcessorPrivilege = mod.Processor.Privilege
	c.Regs.PAR = register.ProgramAddress{
		Level: mod.Processor.StartLevel,
		BDI:   mod.Processor.StartBDI,
		PC:    mod.Processor.StartPC,
	}
	return c, nil
}

func main() {
	var logFile string
	rootCmd := &cobra.Command{
		Use:   "ux2200",
		Short: "ux2200 — a 36-bit word-addressed instruction processor core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return installLogger(logFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "log file (stderr only if omitted)")

	var memWords uint32

	var runModule string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Boot a module and drop into the interactive operator console",
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := loader.LoadFile(runModule)
			if err != nil {
				return err
			}
			c, err := boot(mod, memWords)
			if err != nil {
				return err
			}
			con := console.New(c, os.Stdout)
			console.Run(con)
			return nil
		},
	}
	runCmd.Flags().StringVar(&runModule, "module", "", "loadable module TOML file")
	runCmd.Flags().Uint32Var(&memWords, "mem-words", 1<<20, "main storage size in 36-bit words")
	_ = runCmd.MarkFlagRequired("module")

	var iplModule string
	iplCmd := &cobra.Command{
		Use:   "ipl",
		Short: "Boot a module and run to completion (stop/halt), non-interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := loader.LoadFile(iplModule)
			if err != nil {
				return err
			}
			c, err := boot(mod, memWords)
			if err != nil {
				return err
			}
			c.Start()
			c.Run()
			fmt.Printf("stopped: %s (detail %#o)\n", c.GetStopReason(), c.GetStopDetail())
			return nil
		},
	}
	iplCmd.Flags().StringVar(&iplModule, "module", "", "loadable module TOML file")
	iplCmd.Flags().Uint32Var(&memWords, "mem-words", 1<<20, "main storage size in 36-bit words")
	_ = iplCmd.MarkFlagRequired("module")

	var examineModule string
	var examineAddress uint32
	examineCmd := &cobra.Command{
		Use:   "examine",
		Short: "Load a module and print one absolute word of its initial storage image",
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := loader.LoadFile(examineModule)
			if err != nil {
				return err
			}
			mem := storage.New(memWords)
			trans := addr.New(mem, 0)
			if _, err := loader.Install(mod, mem, trans); err != nil {
				return fmt.Errorf("installing module: %w", err)
			}
			v, err := mem.ReadAbsolute(0, examineAddress)
			if err != nil {
				return err
			}
			fmt.Printf("%#o: %#o\n", examineAddress, v)
			return nil
		},
	}
	examineCmd.Flags().StringVar(&examineModule, "module", "", "loadable module TOML file")
	examineCmd.Flags().Uint32Var(&examineAddress, "address", 0, "absolute word address to print")
	examineCmd.Flags().Uint32Var(&memWords, "mem-words", 1<<20, "main storage size in 36-bit words")
	_ = examineCmd.MarkFlagRequired("module")

	rootCmd.AddCommand(runCmd, iplCmd, examineCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
