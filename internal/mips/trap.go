/*
 * msim - MIPS R4000 exception engine
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

package mips

// Exception is the R4000 ExcCode field of Cause (spec.md section 4.6
// mirrors this for both cores, though the two architectures number their
// causes independently).
type Exception uint32

// ExcNone is the handler success sentinel, matching internal/riscv's
// convention of a result enum rather than panicking on trap.
const ExcNone Exception = 0xffffffff

const (
	ExcInt  Exception = 0  // external interrupt
	ExcMod  Exception = 1  // TLB modification (store to a non-dirty page)
	ExcTLBL Exception = 2  // TLB miss/invalid, load or fetch
	ExcTLBS Exception = 3  // TLB miss/invalid, store
	ExcAdEL Exception = 4  // address error, load or fetch
	ExcAdES Exception = 5  // address error, store
	ExcIBE  Exception = 6  // instruction bus error
	ExcDBE  Exception = 7  // data bus error
	ExcSys  Exception = 8  // syscall
	ExcBp   Exception = 9  // breakpoint
	ExcRI   Exception = 10 // reserved instruction
	ExcCpU  Exception = 11 // coprocessor unusable
	ExcOv   Exception = 12 // arithmetic overflow
	ExcTr   Exception = 13 // trap instruction
)

// generalVector is the exception vector in kseg0 used by everything
// except TLB refill on a plain (non-XTLB) miss.
const (
	resetVector       uint32 = 0xBFC00000
	generalVector      uint32 = 0x80000180
	tlbRefillVector    uint32 = 0x80000000
)

// raiseException implements the R4000 exception entry sequence: EPC
// (backed up by 4 if the faulting instruction was a delay slot, with the
// BD bit recording that), ExcCode, EXL set, and a jump to the
// appropriate vector (spec.md section 4.6).
func (c *CPU) raiseException(exc Exception, badVAddr uint32) {
	if c.CP0.exl() {
		c.CP0.EPC = c.PC
	} else if c.inDelaySlot {
		c.CP0.EPC = c.PC - 4
		c.CP0.setBD(true)
	} else {
		c.CP0.EPC = c.PC
		c.CP0.setBD(false)
	}
	c.CP0.BadVAddr = badVAddr
	c.CP0.setExcCode(uint32(exc))
	c.CP0.Status |= 1 << statusEXLBit

	vector := generalVector
	if (exc == ExcTLBL || exc == ExcTLBS) && !c.CP0.exl() {
		vector = tlbRefillVector
	}
	c.SetPC(vector)
}

// raiseInterruptIfPending checks Cause.IP against Status.IM and, if
// interrupts are globally enabled, takes the highest-priority pending
// one. Returns true if an interrupt was taken.
func (c *CPU) raiseInterruptIfPending() bool {
	if !c.CP0.interruptsEnabled() {
		return false
	}
	pending := c.CP0.pendingIP() & (c.CP0.Status >> 8) & 0xff
	if pending == 0 {
		return false
	}
	c.raiseException(ExcInt, 0)
	return true
}

// SetHardwareIRQ asserts or clears one of the external interrupt lines
// IP2..IP6 (IP7 is reserved for the Count/Compare timer, IP0/IP1 are
// software-only), the line a device (internal/device.IRQSource) drives
// through internal/machine.
func (c *CPU) SetHardwareIRQ(line uint, pending bool) {
	c.CP0.setIP(line, pending)
}

// tickTimer advances Count and raises IP7 when it reaches Compare,
// mirroring internal/riscv's mtime/mtimecmp wiring (spec.md section 4.5's
// CP0 Count/Compare software timer).
func (c *CPU) tickTimer(now uint64) {
	delta := now - c.lastTick
	c.lastTick = now
	c.CP0.Count += uint32(delta)
	if c.CP0.Count == c.CP0.Compare {
		c.CP0.setIP(7, true)
	}
}
