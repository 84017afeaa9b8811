/*
 * msim - interactive debugger command language
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

// Package command implements the interactive debugger's command
// language (spec.md section 6, "Command language"/"System commands"):
// a name-keyed table matched on unique prefix, dispatched against the
// running Machine. Grounded on the teacher's command/command package,
// which keys its own table the same way (matchCommand over a sorted
// name list) rather than a full argument-parsing library.
package command

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rcornwell/msim/internal/breakpoint"
	"github.com/rcornwell/msim/internal/device"
	"github.com/rcornwell/msim/internal/machine"
)

// Devicer is the optional capability a device may implement to accept
// its own sub-commands through `set <name> ...` (spec.md section 6: device
// models may expose extra state beyond the generic dump commands).
type Devicer interface {
	Command(out io.Writer, args []string) error
}

// Context is everything a command handler needs: the machine it is
// driving, where to write its output, and the currently selected hart.
type Context struct {
	Machine *machine.Machine
	Out     io.Writer
	Hart    int
	Quit    bool
}

// Func is one command's implementation.
type Func func(ctx *Context, args []string) error

type entry struct {
	name string
	help string
	fn   Func
}

// Table is the set of registered commands, matched by unique prefix.
type Table struct {
	entries []entry
}

// New creates the system command table (spec.md section 6's fixed
// list): add, quit, continue, step, set, unset, break, rembreak,
// dumpbreak, dumpmem, dumpins, dumpdev, dumpphys, stat, echo, help.
func New() *Table {
	t := &Table{}
	t.register("add", "add a device: add <type> <name> <base> [args...]", cmdAdd)
	t.register("quit", "exit the debugger", cmdQuit)
	t.register("continue", "run until a breakpoint or halt", cmdContinue)
	t.register("step", "execute N instructions (default 1)", cmdStep)
	t.register("set", "set a register, hart, or device parameter", cmdSet)
	t.register("unset", "remove a breakpoint by address", cmdUnset)
	t.register("break", "set a PC or memory breakpoint", cmdBreak)
	t.register("rembreak", "remove a breakpoint by address", cmdUnset)
	t.register("dumpbreak", "list breakpoints", cmdDumpBreak)
	t.register("dumpmem", "dump physical memory", cmdDumpMem)
	t.register("dumpins", "disassemble-by-address placeholder", cmdDumpIns)
	t.register("dumpdev", "list attached devices", cmdDumpDev)
	t.register("dumpphys", "dump a hart's register file", cmdDumpPhys)
	t.register("stat", "print execution statistics", cmdStat)
	t.register("echo", "print the remaining arguments", cmdEcho)
	t.register("help", "list commands", nil) // installed below, needs t
	t.entries[len(t.entries)-1].fn = func(ctx *Context, args []string) error {
		return cmdHelp(t, ctx, args)
	}
	return t
}

func (t *Table) register(name, help string, fn Func) {
	t.entries = append(t.entries, entry{name: name, help: help, fn: fn})
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].name < t.entries[j].name })
}

// Dispatch resolves name against the table by unique prefix match
// (spec.md section 6: "abbreviatable to any unique prefix", the
// teacher's own matchCommand behavior) and runs it.
func (t *Table) Dispatch(ctx *Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	var matches []entry
	for _, e := range t.entries {
		if e.name == name {
			matches = []entry{e}
			break
		}
		if strings.HasPrefix(e.name, name) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("unknown command %q", name)
	case 1:
		return matches[0].fn(ctx, args)
	default:
		names := make([]string, len(matches))
		for i, e := range matches {
			names[i] = e.name
		}
		return fmt.Errorf("ambiguous command %q: matches %s", name, strings.Join(names, ", "))
	}
}

func cmdHelp(t *Table, ctx *Context, _ []string) error {
	for _, e := range t.entries {
		fmt.Fprintf(ctx.Out, "%-10s %s\n", e.name, e.help)
	}
	return nil
}

func cmdQuit(ctx *Context, _ []string) error {
	ctx.Quit = true
	return nil
}

func cmdEcho(ctx *Context, args []string) error {
	fmt.Fprintln(ctx.Out, strings.Join(args, " "))
	return nil
}

func cmdStep(ctx *Context, args []string) error {
	n := uint64(1)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		n = v
	}
	for i := uint64(0); i < n; i++ {
		res := ctx.Machine.StepHart(ctx.Hart)
		if res.HitBreak {
			fmt.Fprintf(ctx.Out, "breakpoint hit at pc=%#x\n", ctx.Machine.Harts[ctx.Hart].PC)
			return nil
		}
		if res.Trapped {
			fmt.Fprintf(ctx.Out, "trap: cause=%#x pc=%#x\n", res.Cause, ctx.Machine.Harts[ctx.Hart].PC)
		}
	}
	return nil
}

func cmdContinue(ctx *Context, _ []string) error {
	for {
		res := ctx.Machine.StepHart(ctx.Hart)
		if res.HitBreak {
			fmt.Fprintf(ctx.Out, "breakpoint hit at pc=%#x\n", ctx.Machine.Harts[ctx.Hart].PC)
			return nil
		}
	}
}

func cmdBreak(ctx *Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("break: usage: break <addr> | break mem <start> <end> <r|w|rw>")
	}
	if args[0] == "mem" {
		if len(args) != 4 {
			return fmt.Errorf("break mem: usage: break mem <start> <end> <r|w|rw>")
		}
		start, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return err
		}
		end, err := strconv.ParseUint(args[2], 0, 64)
		if err != nil {
			return err
		}
		access, err := parseAccess(args[3])
		if err != nil {
			return err
		}
		ctx.Machine.Breaks.AddMem(start, end, access, breakpoint.Debugger)
		return nil
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return fmt.Errorf("break: %w", err)
	}
	ctx.Machine.Breaks.AddPC(addr)
	return nil
}

func parseAccess(s string) (breakpoint.Access, error) {
	switch strings.ToLower(s) {
	case "r":
		return breakpoint.Read, nil
	case "w":
		return breakpoint.Write, nil
	case "rw":
		return breakpoint.ReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown access kind %q (want r, w, or rw)", s)
	}
}

func cmdUnset(ctx *Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("unset: usage: unset <addr>")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return err
	}
	removed := ctx.Machine.Breaks.RemovePC(addr)
	removed = ctx.Machine.Breaks.RemoveMem(addr) || removed
	if !removed {
		return fmt.Errorf("no breakpoint at %#x", addr)
	}
	return nil
}

func cmdDumpBreak(ctx *Context, _ []string) error {
	for _, b := range ctx.Machine.Breaks.PCList() {
		fmt.Fprintf(ctx.Out, "pc %#x hits=%d\n", b.Addr, b.Hits)
	}
	for _, b := range ctx.Machine.Breaks.MemList() {
		fmt.Fprintf(ctx.Out, "mem [%#x,%#x) access=%d\n", b.Start, b.End, b.Access)
	}
	return nil
}

func cmdDumpMem(ctx *Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("dumpmem: usage: dumpmem <addr> [count]")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return err
	}
	count := uint64(16)
	if len(args) > 1 {
		count, err = strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return err
		}
	}
	for i := uint64(0); i < count; i += 16 {
		fmt.Fprintf(ctx.Out, "%08x:", addr+i)
		for j := uint64(0); j < 16 && i+j < count; j++ {
			fmt.Fprintf(ctx.Out, " %02x", ctx.Machine.Read8(addr+i+j, false))
		}
		fmt.Fprintln(ctx.Out)
	}
	return nil
}

// cmdDumpIns is a believable placeholder: disassembly is a named
// Non-goal, so this just reports the raw fetched word rather than a
// mnemonic.
func cmdDumpIns(ctx *Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("dumpins: usage: dumpins <addr>")
	}
	addr, err := strconv.ParseUint(args[0], 0, 64)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%08x: %08x\n", addr, ctx.Machine.Read32(addr, false))
	return nil
}

func cmdDumpDev(ctx *Context, _ []string) error {
	for _, d := range ctx.Machine.Devices.All() {
		fmt.Fprintf(ctx.Out, "%-12s base=%#x size=%#x %s\n", d.Name(), d.Base(), d.Size(), d.Info())
	}
	return nil
}

func cmdDumpPhys(ctx *Context, _ []string) error {
	h := ctx.Machine.Harts[ctx.Hart]
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(ctx.Out, "x%-2d=%08x x%-2d=%08x x%-2d=%08x x%-2d=%08x\n",
			i, h.Regs[i], i+1, h.Regs[i+1], i+2, h.Regs[i+2], i+3, h.Regs[i+3])
	}
	fmt.Fprintf(ctx.Out, "pc=%08x priv=%d\n", h.PC, h.Priv)
	return nil
}

func cmdStat(ctx *Context, _ []string) error {
	h := ctx.Machine.Harts[ctx.Hart]
	fmt.Fprintf(ctx.Out, "hart %d: mcycle=%d minstret=%d\n", h.HartID, h.CSR.Mcycle, h.CSR.Minstret)
	return nil
}

// cmdSet implements `set hart N` and `set <device> <key> <value>`,
// routing the latter to the device's own Command method when it
// implements Devicer (spec.md section 6: device-specific sub-commands).
func cmdSet(ctx *Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("set: usage: set hart <n> | set <device> <args...>")
	}
	if args[0] == "hart" {
		if len(args) != 2 {
			return fmt.Errorf("set hart: usage: set hart <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n >= len(ctx.Machine.Harts) {
			return fmt.Errorf("set hart: invalid hart %q", args[1])
		}
		ctx.Hart = n
		return nil
	}
	return dispatchDevice(ctx, args)
}

func dispatchDevice(ctx *Context, args []string) error {
	dev, ok := ctx.Machine.Devices.ByName(args[0])
	if !ok {
		return fmt.Errorf("no such device: %q", args[0])
	}
	cmder, ok := dev.(Devicer)
	if !ok {
		return fmt.Errorf("device %q takes no commands", args[0])
	}
	return cmder.Command(ctx.Out, args[1:])
}

// cmdAdd attaches a device by type name; the caller (cmd/msim) supplies
// the type registry since internal/command must not import devices/
// (that would create an import cycle the other direction: devices/
// import internal/command's Devicer interface, not vice versa).
var registry = map[string]func(name string, base uint32, args []string) (device.Device, error){}

// RegisterDeviceType installs a constructor for `add <type> ...`.
func RegisterDeviceType(typeName string, ctor func(name string, base uint32, args []string) (device.Device, error)) {
	registry[typeName] = ctor
}

func cmdAdd(ctx *Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("add: usage: add <type> <name> <base> [args...]")
	}
	ctor, ok := registry[args[0]]
	if !ok {
		return fmt.Errorf("unknown device type %q", args[0])
	}
	base, err := strconv.ParseUint(args[2], 0, 32)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	dev, err := ctor(args[1], uint32(base), args[3:])
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	if err := ctx.Machine.Devices.Add(dev); err != nil {
		return err
	}
	if binder, ok := dev.(device.MemoryBinder); ok {
		binder.BindMemory(ctx.Machine)
	}
	return nil
}
