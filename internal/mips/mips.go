/*
 * msim - MIPS R4000 hart state
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

// Package mips implements the 32-bit MIPS R4000 processor core: the CP0
// register bank, a TLB keyed on VPN+ASID, the 32-bit instruction set
// (arithmetic/logic/shift, load/store, branch and jump), the exception
// engine, and the branch-delay-slot sequencing that RV32IMA has no
// analogue for. Grounded directly on original_source's
// device/cpu/mips_r4000 tree, most concretely instr/bgez.c for the
// delay-slot mechanics.
package mips

// Bus is everything a hart needs from the rest of the machine. Mirrors
// internal/riscv.Bus so internal/machine can implement one interface
// per core rather than a union type; implemented by
// internal/machine.Machine, so this package never imports it.
type Bus interface {
	Read8(phys uint64, noisy bool) uint8
	Read16(phys uint64, noisy bool) uint16
	Read32(phys uint64, noisy bool) uint32
	Write8(phys uint64, v uint8, noisy bool) bool
	Write16(phys uint64, v uint16, noisy bool) bool
	Write32(phys uint64, v uint32, noisy bool) bool
	FetchHandler(phys uint64) (Handler, bool)

	// InvalidateReservations clears every hart's LL reservation matching
	// the aligned-down physical address of a store.
	InvalidateReservations(hartID uint32, alignedAddr uint32)

	CheckMemBreak(phys uint64, write bool) bool
	CheckPCBreak(phys uint64) bool

	Now() uint64
}

// branchKind records why the step loop owes a delay-slot instruction a
// redirect once it retires (original_source's cpu->branch field).
type branchKind int

const (
	branchNone branchKind = iota
	branchCond
	branchUncond
)

// CPU is one MIPS R4000 hart, operating in 32-bit (non-64-bit) mode.
type CPU struct {
	HartID uint32
	Regs   [32]uint32
	HI, LO uint32

	// PC is the address of the instruction about to execute. PCNext is
	// the address the *following* instruction will execute at --
	// ordinarily PC+4, but a taken branch/jump overwrites it with the
	// branch target (original_source instr_bgez: "cpu->pc_next.ptr +=
	// offset"). Because MIPS always executes the instruction
	// immediately after a branch (the delay slot) before diverting
	// control, the redirect implied by PCNext is not applied to PC
	// until one more step has retired; pendingTarget and inDelaySlot
	// carry it across that one-step gap.
	PC           uint32
	PCNext       uint32
	branch       branchKind
	inDelaySlot  bool
	pendingTarget uint32

	CP0 CP0
	TLB TLB

	reservedAddr  uint32
	reservedValid bool

	lastTick uint64
}

// ResetAddress is the R4000 power-on / reset exception vector in the
// unmapped, uncached kseg1 segment.
const ResetAddress uint32 = 0xBFC00000

// New creates a hart reset to its power-on state.
func New(hartID uint32) *CPU {
	c := &CPU{
		HartID: hartID,
		PC:     ResetAddress,
		PCNext: ResetAddress + 4,
	}
	c.CP0.reset(hartID)
	c.TLB.reset()
	return c
}

// SetPC jumps the hart to value outside of normal execution (e.g. the
// debugger's `set pc`), clearing any in-flight delay-slot redirect so
// the jump takes effect immediately rather than being overwritten by a
// stale pendingTarget.
func (c *CPU) SetPC(value uint32) {
	c.PC = value
	c.PCNext = value + 4
	c.branch = branchNone
	c.inDelaySlot = false
}

// InDelaySlot reports whether the instruction about to execute is a
// branch delay slot, for the debugger's single-step display.
func (c *CPU) InDelaySlot() bool { return c.inDelaySlot }

// InvalidateIfReserved clears this hart's LL reservation if it matches
// alignedAddr (spec.md section 4.9's single global reservation set,
// mirrored from internal/riscv for LL/SC-equivalent atomics).
func (c *CPU) InvalidateIfReserved(alignedAddr uint32) {
	if c.reservedValid && c.reservedAddr == alignedAddr {
		c.reservedValid = false
	}
}
