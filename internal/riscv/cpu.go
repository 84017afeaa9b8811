/*
 * msim - RISC-V hart state
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

package riscv

const StartAddress uint32 = 0x80000000

// Bus is everything a hart needs from the rest of the machine: physically
// addressed memory (through the device registry's MMIO intercept) and the
// decode cache. Implemented by internal/machine.Machine, so this package
// never imports it -- keeping the dependency direction machine -> riscv.
type Bus interface {
	Read8(phys uint64, noisy bool) uint8
	Read16(phys uint64, noisy bool) uint16
	Read32(phys uint64, noisy bool) uint32
	Write8(phys uint64, v uint8, noisy bool) bool
	Write16(phys uint64, v uint16, noisy bool) bool
	Write32(phys uint64, v uint32, noisy bool) bool
	FetchHandler(phys uint64) (Handler, bool)

	// InvalidateReservations clears every hart's LL reservation matching
	// the aligned-down address of a store (spec.md section 4.9).
	InvalidateReservations(hartID uint32, alignedAddr uint32)

	// CheckMemBreak reports whether a memory access at phys should halt
	// interactive execution (C8).
	CheckMemBreak(phys uint64, write bool) bool
	// CheckPCBreak reports whether fetching at phys should halt.
	CheckPCBreak(phys uint64) bool

	// Now returns a monotonically increasing nanosecond counter used to
	// advance mtime.
	Now() uint64
}

// CPU is one RV32IMA hart.
type CPU struct {
	HartID   uint32
	Regs     [32]uint32
	PC       uint32
	PCNext   uint32
	Priv     Priv
	CSR      CSR
	Standby  bool
	Halted   bool // not set by Step; a PC breakpoint hit is reported in StepResult.HitBreak

	reservedAddr  uint32
	reservedValid bool

	lastTick uint64

	branchKind branchKind
}

type branchKind int

const (
	branchNone branchKind = iota
	branchCond
	branchUncond
)

// New creates a hart reset to its power-on state.
func New(hartID uint32) *CPU {
	c := &CPU{
		HartID: hartID,
		PC:     StartAddress,
		PCNext: StartAddress + 4,
		Priv:   PrivMachine,
		CSR:    newCSR(hartID),
	}
	return c
}

// SetPC jumps the hart to value, per original_source's rv_cpu_set_pc:
// both pc and pc_next are set so that, if the next executed instruction
// does not itself redirect control flow, execution falls through to
// value+4 rather than looping back to value.
func (c *CPU) SetPC(value uint32) {
	if value%4 != 0 {
		return
	}
	c.PC = value
	c.PCNext = value + 4
}

// effectivePriv is the privilege level memory accesses are checked
// against: MPP when MPRV is set and this isn't an instruction fetch,
// otherwise the hart's actual current privilege (spec.md section 4.4).
func (c *CPU) effectivePriv(fetch bool) Priv {
	if c.CSR.MPRV() && !fetch {
		return c.CSR.MPP()
	}
	return c.Priv
}

// ReservationValid reports whether this hart holds a live LL reservation,
// and its aligned-down physical address; exposed for tests.
func (c *CPU) ReservationValid() (uint32, bool) {
	return c.reservedAddr, c.reservedValid
}

// InvalidateIfReserved drops this hart's reservation if it matches
// alignedAddr. Called for every hart on every store, including the
// store's own originating hart (spec.md section 4.9: a single global
// reservation set, so a hart's own subsequent store also clears it).
func (c *CPU) InvalidateIfReserved(alignedAddr uint32) {
	if c.reservedValid && c.reservedAddr == alignedAddr {
		c.reservedValid = false
	}
}

// RaiseInterruptUp sets the line for external interrupt number no (per
// original_source rv_interrupt_up): the machine external or software
// lines, or the sticky SEIP latch for supervisor-external.
func (c *CPU) RaiseInterruptUp(code Exception) {
	if code == IntSupervisorExternal {
		c.CSR.ExternalSEIP = true
		return
	}
	switch code {
	case IntMachineSoftware, IntSupervisorSoftware, IntMachineExternal:
	default:
		code = IntMachineExternal
	}
	c.CSR.Mip |= 1 << code.Code()
}

// RaiseInterruptDown clears the line raised by RaiseInterruptUp.
func (c *CPU) RaiseInterruptDown(code Exception) {
	if code == IntSupervisorExternal {
		c.CSR.ExternalSEIP = false
		return
	}
	switch code {
	case IntMachineSoftware, IntSupervisorSoftware, IntMachineExternal:
	default:
		code = IntMachineExternal
	}
	c.CSR.Mip &^= 1 << code.Code()
}
