/*
 * msim - instruction-set simulator entry point
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command msim is the interactive instruction-set simulator: it parses
// flags, loads an optional config file that attaches devices ahead of
// time, and drops into a liner-backed command REPL driving one
// Machine. Modeled on the teacher's own main.go (getopt flags, a
// config file loaded before the run starts, SIGINT/SIGTERM handled for
// a clean device teardown) adapted from its background-goroutine CPU
// driver to a synchronous step/continue debugger loop.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"

	"github.com/rcornwell/msim/internal/command"
	"github.com/rcornwell/msim/internal/configparser"
	"github.com/rcornwell/msim/internal/gdbstub"
	"github.com/rcornwell/msim/internal/logging"
	"github.com/rcornwell/msim/internal/machine"

	_ "github.com/rcornwell/msim/devices/ddisk"
	_ "github.com/rcornwell/msim/devices/dipi"
	_ "github.com/rcornwell/msim/devices/dprinter"
	_ "github.com/rcornwell/msim/devices/dterminal"
)

func main() {
	optArch := getopt.StringLong("arch", 'a', "riscv", "CPU architecture: riscv or mips")
	optHarts := getopt.StringLong("harts", 'n', "1", "number of harts")
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optLogLevel := getopt.StringLong("log-level", 0, "info", "Log level: debug, info, warn, error")
	optGDB := getopt.StringLong("gdb", 0, "", "GDB remote-serial-protocol listen address")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	log, err := buildLogger(*optLogFile, *optLogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "msim:", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	printBanner(log)

	nHarts, err := strconv.Atoi(*optHarts)
	if err != nil {
		log.Error("--harts: " + err.Error())
		os.Exit(1)
	}
	m, err := buildMachine(*optArch, nHarts, log)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	defer m.Teardown()

	table := command.New()
	ctx := &command.Context{Machine: m, Out: os.Stdout, Hart: 0}

	if path := configparser.ResolvePath(*optConfig); path != "" {
		if err := loadConfig(path, table, ctx); err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		log.Info("configuration loaded", "path", path)
	}

	if *optGDB != "" {
		stub := gdbstub.New(*optGDB)
		if err := stub.Listen(); err != nil {
			// Remote debugging is a named non-goal: log it and keep
			// running the local REPL rather than exiting.
			log.Warn(err.Error())
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nmsim: shutting down")
		m.Teardown()
		os.Exit(0)
	}()

	runREPL(table, ctx, log)
}

// buildLogger constructs the shared slog.Logger, writing to optLogFile
// if given or stderr otherwise (spec.md section 6's `--log`/`--log-level`
// flags).
func buildLogger(logFile, levelName string) (*slog.Logger, error) {
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	w := os.Stderr
	if logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		return logging.NewLogger(f, level), nil
	}
	return logging.NewLogger(w, level), nil
}

// buildMachine selects RV32IMA or MIPS R4000 harts per --arch (spec.md
// section 3 treats them as alternative simulation targets).
func buildMachine(arch string, nHarts int, log *slog.Logger) (*machine.Machine, error) {
	if nHarts < 1 {
		return nil, fmt.Errorf("--harts must be at least 1")
	}
	switch strings.ToLower(arch) {
	case "riscv", "rv32ima", "":
		return machine.New(nHarts, log), nil
	case "mips", "mips32", "r4000":
		return machine.NewMIPS(nHarts, log), nil
	default:
		return nil, fmt.Errorf("unknown --arch %q (want riscv or mips)", arch)
	}
}

// loadConfig registers a "device" directive that forwards straight to
// the `add` command and a "break" directive that forwards to `break`, so
// the config file and the REPL share one code path for each.
func loadConfig(path string, table *command.Table, ctx *command.Context) error {
	p := configparser.New()
	p.Register("device", func(args []string) error {
		return table.Dispatch(ctx, "add "+strings.Join(args, " "))
	})
	p.Register("break", func(args []string) error {
		return table.Dispatch(ctx, "break "+strings.Join(args, " "))
	})
	return p.Load(path)
}

// runREPL is the interactive command loop (spec.md section 6's command
// language), grounded on the teacher's own liner-backed debugger loop.
func runREPL(table *command.Table, ctx *command.Context, log *slog.Logger) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		prompt := fmt.Sprintf("msim[hart %d]> ", ctx.Hart)
		text, err := line.Prompt(prompt)
		if err != nil {
			// liner.ErrPromptAborted (Ctrl-C) and io.EOF (Ctrl-D) both end
			// the session the same way a `quit` command would.
			break
		}
		line.AppendHistory(text)
		if err := table.Dispatch(ctx, text); err != nil {
			fmt.Fprintln(os.Stdout, "msim:", err)
			log.Debug("command error", "line", text, "err", err)
		}
		if ctx.Quit {
			break
		}
	}
}
