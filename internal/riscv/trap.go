/*
 * msim - RISC-V trap and privilege engine (C6)
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

// mTrap vectors to machine mode, saving mepc/mcause/mtval and the
// mstatus interrupt-enable stack (original_source's m_trap).
func (c *CPU) mTrap(cause Exception, tval uint32) {
	c.CSR.Mepc = c.PC
	c.CSR.Mcause = cause
	c.CSR.Mtval = tval
	c.CSR.SetMPIE(c.CSR.MIE())
	c.CSR.SetMIE(false)
	c.CSR.SetMPP(c.Priv)
	c.Priv = PrivMachine
	c.PCNext = c.trapTarget(c.CSR.Mtvec, cause)
}

// sTrap vectors to supervisor mode, saving sepc/scause/stval and the
// mstatus SIE/SPIE/SPP stack (original_source's s_trap). Only ever
// invoked for causes delegated via medeleg/mideleg.
func (c *CPU) sTrap(cause Exception, tval uint32) {
	c.CSR.Sepc = c.PC
	c.CSR.Scause = cause
	c.CSR.Stval = tval
	c.CSR.SetSPIE(c.CSR.SIE())
	c.CSR.SetSIE(false)
	c.CSR.SetSPP(c.Priv)
	c.Priv = PrivSupervisor
	c.PCNext = c.trapTarget(c.CSR.Stvec, cause)
}

func (c *CPU) trapTarget(tvec uint32, cause Exception) uint32 {
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == mtvecModeVectored && cause.IsInterrupt() {
		return base + 4*cause.Code()
	}
	return base
}

// delegated reports whether cause should be routed to s_trap instead of
// m_trap: the hart's current privilege must be S or U, and the matching
// bit of medeleg (synchronous) or mideleg (interrupt) must be set.
// M-mode-only interrupts (MSI/MTI/MEI) are never delegatable.
func (c *CPU) delegated(cause Exception) bool {
	if c.Priv == PrivMachine {
		return false
	}
	if cause.IsInterrupt() {
		switch cause {
		case IntMachineSoftware, IntMachineTimer, IntMachineExternal:
			return false
		}
		return c.CSR.Mideleg&(1<<cause.Code()) != 0
	}
	return c.CSR.Medeleg&(1<<cause.Code()) != 0
}

// handleException dispatches a synchronous exception to s_trap or
// m_trap depending on delegation (original_source's handle_exception).
func (c *CPU) handleException(cause Exception, tval uint32) {
	if c.delegated(cause) {
		c.sTrap(cause, tval)
	} else {
		c.mTrap(cause, tval)
	}
}

// interruptPriority lists the six standard interrupt causes in the
// fixed priority order the privileged spec mandates: machine external,
// software, timer, then the supervisor equivalents (spec.md section
// 4.6, "interrupt priority MEI,MSI,MTI,SEI,SSI,STI").
var interruptPriority = []Exception{
	IntMachineExternal,
	IntMachineSoftware,
	IntMachineTimer,
	IntSupervisorExternal,
	IntSupervisorSoftware,
	IntSupervisorTimer,
}

// tryHandleInterrupt checks every pending-and-enabled interrupt in
// priority order and, if one fires, vectors to it and returns true
// (original_source's try_handle_interrupt). A synchronous exception
// from the instruction just executed always takes priority over this
// call -- the step loop only invokes it when the instruction succeeded.
func (c *CPU) tryHandleInterrupt() bool {
	pending := c.effectiveMip() & c.CSR.Mie
	for _, cause := range interruptPriority {
		bit := uint32(1) << cause.Code()
		if pending&bit == 0 {
			continue
		}
		if !c.interruptEnabled(cause) {
			continue
		}
		if c.delegated(cause) {
			c.sTrap(cause, 0)
		} else {
			c.mTrap(cause, 0)
		}
		return true
	}
	return false
}

func (c *CPU) interruptEnabled(cause Exception) bool {
	if c.delegated(cause) {
		if c.Priv == PrivUser {
			return true
		}
		return c.Priv == PrivSupervisor && c.CSR.SIE()
	}
	if c.Priv == PrivMachine {
		return c.CSR.MIE()
	}
	return true
}

// raiseTimerInterrupts sets or clears MTIP and STIP from the hart's
// mtimecmp/mtime and scyclecmp/mcycle pairs. original_source keeps the
// cycle-based supervisor timer (scyclecmp) independent of the
// wall-clock-based machine timer (mtimecmp) since guests frequently
// program the two against different clocks.
func (c *CPU) raiseTimerInterrupts() {
	if c.CSR.Mtime >= c.CSR.Mtimecmp {
		c.CSR.Mip |= uint32(1) << IntMachineTimer.Code()
	} else {
		c.CSR.Mip &^= uint32(1) << IntMachineTimer.Code()
	}
	if c.CSR.Scyclecmp != 0 && c.CSR.Mcycle >= c.CSR.Scyclecmp {
		c.CSR.Mip |= uint32(1) << IntSupervisorTimer.Code()
	} else {
		c.CSR.Mip &^= uint32(1) << IntSupervisorTimer.Code()
	}
}

const (
	mcountinhibitCY = 1 << 0
	mcountinhibitIR = 1 << 2
)

// hpmEventActive reports whether a hart in priv is accumulating cycles
// for ev (original_source account_hmp).
func hpmEventActive(ev HPMEvent, priv Priv, standby bool) bool {
	switch ev {
	case HPMUserCycles:
		return priv == PrivUser && !standby
	case HPMSupervisorCycles:
		return priv == PrivSupervisor && !standby
	case HPMMachineCycles:
		return priv == PrivMachine && !standby
	case HPMStandbyCycles:
		return standby
	default:
		return false
	}
}

// account advances mcycle/minstret and every programmable hpm counter
// by one tick, honoring mcountinhibit (original_source's account).
// retired is true when an instruction actually completed this cycle.
func (c *CPU) account(retired bool) {
	if c.CSR.Mcountinhibit&mcountinhibitCY == 0 {
		c.CSR.Mcycle++
	}
	if retired && c.CSR.Mcountinhibit&mcountinhibitIR == 0 {
		c.CSR.Minstret++
	}
	for i, ev := range c.CSR.HPMEvent {
		if ev == HPMNone {
			continue
		}
		inhibitBit := uint32(1) << uint(i+3)
		if c.CSR.Mcountinhibit&inhibitBit != 0 {
			continue
		}
		if hpmEventActive(ev, c.Priv, c.Standby) {
			c.CSR.HPMCounter[i]++
		}
	}
}
