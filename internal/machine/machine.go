/*
 * msim - machine: owns memory, devices, decode cache and breakpoints
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

// Package machine assembles the pieces spec.md keeps as separate
// components -- physical memory, the device registry, the decode cache,
// and the breakpoint set -- into the single aggregate every hart is
// stepped against. It holds no package-level state: every simulated
// system is one *Machine, so more than one can exist in a test process.
package machine

import (
	"log/slog"
	"time"

	"github.com/rcornwell/msim/internal/breakpoint"
	"github.com/rcornwell/msim/internal/decode"
	"github.com/rcornwell/msim/internal/device"
	"github.com/rcornwell/msim/internal/memory"
	"github.com/rcornwell/msim/internal/mips"
	"github.com/rcornwell/msim/internal/riscv"
)

// Machine is the aggregate simulated system: physical memory, the
// memory-mapped device registry, a shared decode cache, the breakpoint
// set, and every hart. It implements riscv.Bus directly.
type Machine struct {
	Mem     *memory.Memory
	Devices *device.Registry
	Decode  *decode.Cache
	Breaks  *breakpoint.Set

	Harts []*riscv.CPU

	// MIPSHarts holds the R4000 harts when the machine was built by
	// NewMIPS. A machine is one architecture at a time (spec.md section
	// 3 treats RV32IMA and MIPS R4000 as alternative simulation
	// targets, not a mixed multiprocessor); exactly one of Harts and
	// MIPSHarts is populated.
	MIPSHarts []*mips.CPU

	mipsDecode *decode.Cache

	log   *slog.Logger
	start time.Time
}

// New creates an empty machine with nHarts RV32IMA harts.
func New(nHarts int, log *slog.Logger) *Machine {
	m := newBase(log)
	m.Decode = decode.New(m.Mem, func(word uint32) decode.Handler {
		return riscv.Decode(word)
	})
	m.Mem.OnWrite(func(frameBase uint64) {
		m.Decode.Invalidate(frameBase)
	})
	for i := 0; i < nHarts; i++ {
		m.Harts = append(m.Harts, riscv.New(uint32(i)))
	}
	return m
}

// NewMIPS creates an empty machine with nHarts MIPS R4000 harts in place
// of RV32IMA ones, sharing the same memory/device/breakpoint plumbing.
func NewMIPS(nHarts int, log *slog.Logger) *Machine {
	m := newBase(log)
	m.mipsDecode = decode.New(m.Mem, func(word uint32) decode.Handler {
		return mips.Decode(word)
	})
	m.Mem.OnWrite(func(frameBase uint64) {
		m.mipsDecode.Invalidate(frameBase)
	})
	for i := 0; i < nHarts; i++ {
		m.MIPSHarts = append(m.MIPSHarts, mips.New(uint32(i)))
	}
	return m
}

func newBase(log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		Mem:     memory.New(log),
		Devices: device.New(),
		Breaks:  breakpoint.New(),
		log:     log,
		start:   time.Now(),
	}
}

// Read8/16/32 and Write8/16/32 implement riscv.Bus by delegating to the
// device registry first (MMIO intercept, spec.md section 4.2) and
// falling back to physical memory when no device claims the address.
func (m *Machine) Read8(phys uint64, noisy bool) uint8 {
	if phys <= 0xffffffff {
		if v, ok := m.Devices.DispatchRead8(uint32(phys)); ok {
			return v
		}
	}
	return uint8(m.Mem.Read8(phys, noisy))
}

func (m *Machine) Read16(phys uint64, noisy bool) uint16 {
	if phys <= 0xffffffff {
		if v, ok := m.Devices.DispatchRead16(uint32(phys)); ok {
			return v
		}
	}
	return uint16(m.Mem.Read16(phys, noisy))
}

func (m *Machine) Read32(phys uint64, noisy bool) uint32 {
	if phys <= 0xffffffff {
		if v, ok := m.Devices.DispatchRead32(uint32(phys)); ok {
			return v
		}
	}
	return uint32(m.Mem.Read32(phys, noisy))
}

func (m *Machine) Write8(phys uint64, v uint8, noisy bool) bool {
	if phys <= 0xffffffff {
		if m.Devices.DispatchWrite8(uint32(phys), v) {
			return true
		}
	}
	return m.Mem.Write8(phys, v, noisy)
}

func (m *Machine) Write16(phys uint64, v uint16, noisy bool) bool {
	if phys <= 0xffffffff {
		if m.Devices.DispatchWrite16(uint32(phys), v) {
			return true
		}
	}
	return m.Mem.Write16(phys, v, noisy)
}

func (m *Machine) Write32(phys uint64, v uint32, noisy bool) bool {
	if phys <= 0xffffffff {
		if m.Devices.DispatchWrite32(uint32(phys), v) {
			return true
		}
	}
	return m.Mem.Write32(phys, v, noisy)
}

// FetchHandler implements riscv.Bus via the shared decode cache.
func (m *Machine) FetchHandler(phys uint64) (riscv.Handler, bool) {
	h, ok := m.Decode.Fetch(phys)
	if !ok {
		return nil, false
	}
	handler, ok := h.(riscv.Handler)
	return handler, ok
}

// FetchMIPSHandler is FetchHandler's MIPS counterpart, backed by the
// machine's separate mips-keyed decode cache.
func (m *Machine) FetchMIPSHandler(phys uint64) (mips.Handler, bool) {
	h, ok := m.mipsDecode.Fetch(phys)
	if !ok {
		return nil, false
	}
	handler, ok := h.(mips.Handler)
	return handler, ok
}

// InvalidateReservations clears every hart's LL/LL-SC reservation that
// matches alignedAddr, including the originating hart's own (spec.md
// section 4.9: "a single global reservation set", so any store anywhere
// clears it). Only one of Harts/MIPSHarts is ever non-empty.
func (m *Machine) InvalidateReservations(hartID uint32, alignedAddr uint32) {
	for _, h := range m.Harts {
		h.InvalidateIfReserved(alignedAddr)
	}
	for _, h := range m.MIPSHarts {
		h.InvalidateIfReserved(alignedAddr)
	}
}

func (m *Machine) CheckMemBreak(phys uint64, write bool) bool {
	access := breakpoint.Read
	if write {
		access = breakpoint.Write
	}
	return len(m.Breaks.CheckMem(phys, access)) > 0
}

func (m *Machine) CheckPCBreak(phys uint64) bool {
	return m.Breaks.CheckPC(phys) != nil
}

// Now returns nanoseconds since the machine was created, used to drive
// mtime (spec.md section 3: "mtime advances off a wall-clock source").
func (m *Machine) Now() uint64 {
	return uint64(time.Since(m.start))
}

// StepHart advances one hart by exactly one instruction or interrupt
// service (spec.md section 4.7), also ticking every device once and
// every fourth call ticking the coarse Step4 devices (C2).
func (m *Machine) StepHart(idx int) riscv.StepResult {
	h := m.Harts[idx]
	h.CSR.Mtime = m.Now() / 1000
	if m.Devices.IRQPending(idx) {
		h.RaiseInterruptUp(riscv.IntMachineExternal)
	} else {
		h.RaiseInterruptDown(riscv.IntMachineExternal)
	}
	res := h.Step(m)
	m.Devices.Step()
	return res
}

// mipsBus adapts *Machine to mips.Bus. A distinct wrapper type is needed
// only because Go cannot dispatch FetchHandler to two different return
// types (riscv.Handler vs. mips.Handler) on the same receiver method
// name; every other method is a direct pass-through to Machine's own.
type mipsBus struct{ *Machine }

func (b mipsBus) FetchHandler(phys uint64) (mips.Handler, bool) {
	return b.Machine.FetchMIPSHandler(phys)
}

// deviceIRQLine is the CP0 Cause.IP bit devices assert MMIO interrupts
// on, IP2 being the first hardware (non-timer, non-software) line.
const deviceIRQLine = 2

// StepMIPSHart is StepHart's MIPS counterpart.
func (m *Machine) StepMIPSHart(idx int) mips.StepResult {
	h := m.MIPSHarts[idx]
	h.SetHardwareIRQ(deviceIRQLine, m.Devices.IRQPending(idx))
	res := h.Step(mipsBus{m})
	m.Devices.Step()
	return res
}

// Teardown releases every device's resources.
func (m *Machine) Teardown() {
	m.Devices.Teardown()
}
