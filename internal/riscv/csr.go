/*
 * msim - RISC-V CSR bank
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

// Package riscv implements the RV32IMA processor core: CSR bank, Sv32
// translator (C4), instruction handlers (C5), trap/privilege engine (C6),
// per-hart step loop (C7), and the LL/SC reservation set (C9). Grounded
// directly on original_source's device/cpu/riscv_rv32ima/cpu.c.
package riscv

// Priv is a privilege level.
type Priv int

const (
	PrivUser Priv = iota
	PrivSupervisor
	_ // RV reserves level 2 (hypervisor) which msim does not implement
	PrivMachine
)

// mstatus bit positions and masks, named per spec.md section 3.
const (
	mstatusMIEBit  = 3
	mstatusSIEBit  = 1
	mstatusMPIEBit = 7
	mstatusSPIEBit = 5
	mstatusSPPBit  = 8
	mstatusMPPLow  = 11
	mstatusMPRVBit = 17
	mstatusSUMBit  = 18
	mstatusMXRBit  = 19

	mstatusMIEMask  = 1 << mstatusMIEBit
	mstatusSIEMask  = 1 << mstatusSIEBit
	mstatusMPIEMask = 1 << mstatusMPIEBit
	mstatusSPIEMask = 1 << mstatusSPIEBit
	mstatusSPPMask  = 1 << mstatusSPPBit
	mstatusMPPMask  = 0b11 << mstatusMPPLow
	mstatusMPRVMask = 1 << mstatusMPRVBit
	mstatusSUMMask  = 1 << mstatusSUMBit
	mstatusMXRMask  = 1 << mstatusMXRBit
)

// Synchronous exception codes (spec.md section 4.6 numbers these 0..31).
const (
	ExcInstrAddrMisaligned Exception = 0
	ExcInstrAccessFault    Exception = 1
	ExcIllegalInstruction  Exception = 2
	ExcBreakpoint          Exception = 3
	ExcLoadAddrMisaligned  Exception = 4
	ExcLoadAccessFault     Exception = 5
	ExcStoreAddrMisaligned Exception = 6
	ExcStoreAccessFault    Exception = 7
	ExcEcallU              Exception = 8
	ExcEcallS              Exception = 9
	ExcEcallM              Exception = 11
	ExcInstrPageFault      Exception = 12
	ExcLoadPageFault       Exception = 13
	ExcStorePageFault      Exception = 15
)

// Interrupt codes, OR'd with InterruptBit (spec.md section 4.6: "a
// two-space enum: synchronous exceptions 0...31 and interrupts with the
// high bit set").
const (
	InterruptBit Exception = 0x80000000

	IntSupervisorSoftware Exception = InterruptBit | 1
	IntMachineSoftware    Exception = InterruptBit | 3
	IntSupervisorTimer    Exception = InterruptBit | 5
	IntMachineTimer       Exception = InterruptBit | 7
	IntSupervisorExternal Exception = InterruptBit | 9
	IntMachineExternal    Exception = InterruptBit | 11
)

// ExcNone is the handler success sentinel (spec.md section 9, "Exception
// as return value: keep it as a result enum, not host-level exceptions").
// 0xFFFFFFFF sets the interrupt bit with a code no real interrupt uses, so
// it can never collide with a genuine cause value.
const ExcNone Exception = 0xFFFFFFFF

// Exception is the processor's two-space trap-cause enum.
type Exception uint32

func (e Exception) IsInterrupt() bool { return e&InterruptBit != 0 && e != ExcNone }
func (e Exception) Code() uint32      { return uint32(e &^ InterruptBit) }

// mtvecMode values.
const (
	mtvecModeDirect   = 0
	mtvecModeVectored = 1
)

// hpm event selectors (original_source csr_hpm_event_t).
type HPMEvent int

const (
	HPMNone HPMEvent = iota
	HPMUserCycles
	HPMSupervisorCycles
	HPMMachineCycles
	HPMStandbyCycles
)

const numHPM = 29

// CSR is the control/status register bank of one hart.
type CSR struct {
	Mstatus uint32
	Mepc    uint32
	Mcause  Exception
	Mtval   uint32
	Mtvec   uint32
	Mie     uint32
	Mip     uint32
	Medeleg uint32
	Mideleg uint32
	Satp    uint32

	Mcycle        uint64
	Minstret      uint64
	Mtime         uint64
	Mtimecmp      uint64
	Scyclecmp     uint64
	Mcountinhibit uint32

	HPMCounter [numHPM]uint64
	HPMEvent   [numHPM]HPMEvent

	Mhartid uint32

	// S-mode shadow registers.
	Sepc   uint32
	Scause Exception
	Stval  uint32
	Stvec  uint32

	Mscratch uint32
	Sscratch uint32

	// ExternalSEIP is the sticky supervisor-external-interrupt latch,
	// tracked apart from Mip because it is independently settable from
	// M-mode (original_source cpu.c rv_interrupt_up/down commentary on
	// RISC-V Privileged spec section 3.1.9).
	ExternalSEIP bool

	// TvalNext carries a would-be mtval/stval value from a memory access
	// helper into the trap that follows it; cleared every step.
	TvalNext uint32
}

func newCSR(hartID uint32) CSR {
	c := CSR{Mhartid: hartID}
	return c
}

func (c *CSR) mstatusBit(mask uint32) bool { return c.Mstatus&mask != 0 }

func (c *CSR) MIE() bool  { return c.mstatusBit(mstatusMIEMask) }
func (c *CSR) SIE() bool  { return c.mstatusBit(mstatusSIEMask) }
func (c *CSR) MPIE() bool { return c.mstatusBit(mstatusMPIEMask) }
func (c *CSR) SPIE() bool { return c.mstatusBit(mstatusSPIEMask) }
func (c *CSR) MPRV() bool { return c.mstatusBit(mstatusMPRVMask) }
func (c *CSR) SUM() bool  { return c.mstatusBit(mstatusSUMMask) }
func (c *CSR) MXR() bool  { return c.mstatusBit(mstatusMXRMask) }

func (c *CSR) MPP() Priv { return Priv((c.Mstatus & mstatusMPPMask) >> mstatusMPPLow) }
func (c *CSR) SPP() Priv {
	if c.Mstatus&mstatusSPPMask != 0 {
		return PrivSupervisor
	}
	return PrivUser
}

func (c *CSR) setBit(mask uint32, v bool) {
	if v {
		c.Mstatus |= mask
	} else {
		c.Mstatus &^= mask
	}
}

func (c *CSR) SetMIE(v bool)  { c.setBit(mstatusMIEMask, v) }
func (c *CSR) SetSIE(v bool)  { c.setBit(mstatusSIEMask, v) }
func (c *CSR) SetMPIE(v bool) { c.setBit(mstatusMPIEMask, v) }
func (c *CSR) SetSPIE(v bool) { c.setBit(mstatusSPIEMask, v) }

func (c *CSR) SetMPP(p Priv) {
	c.Mstatus = (c.Mstatus &^ mstatusMPPMask) | (uint32(p)<<mstatusMPPLow)&mstatusMPPMask
}

func (c *CSR) SetSPP(p Priv) {
	if p == PrivUser {
		c.Mstatus &^= mstatusSPPMask
	} else {
		c.Mstatus |= mstatusSPPMask
	}
}

// SatpBare reports whether paging is disabled (satp mode field is bare).
func (c *CSR) SatpBare() bool {
	return c.Satp&(1<<31) == 0
}

func (c *CSR) SatpPPN() uint32 { return c.Satp & 0x003fffff }
