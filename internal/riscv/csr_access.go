/*
 * msim - CSR address dispatch
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

// Standard CSR addresses msim implements (RISC-V Privileged spec chapter 2).
const (
	csrSstatus  = 0x100
	csrSie      = 0x104
	csrStvec    = 0x105
	csrSscratch = 0x140
	csrSepc     = 0x141
	csrScause   = 0x142
	csrStval    = 0x143
	csrSip      = 0x144
	csrSatp     = 0x180

	csrMstatus    = 0x300
	csrMisa       = 0x301
	csrMedeleg    = 0x302
	csrMideleg    = 0x303
	csrMie        = 0x304
	csrMtvec      = 0x305
	csrMcountinh  = 0x320
	csrMscratch   = 0x340
	csrMepc       = 0x341
	csrMcause     = 0x342
	csrMtval      = 0x343
	csrMip        = 0x344

	csrMcycle   = 0xb00
	csrMinstret = 0xb02
	// 0xb03..0xb1f are mhpmcounter3..31.
	csrMhpmcounterBase = 0xb03

	csrMcycleh   = 0xb80
	csrMinstreth = 0xb82
	csrMhpmcounterhBase = 0xb83

	// 0x323..0x33f are mhpmevent3..31.
	csrMhpmeventBase = 0x323

	csrCycle   = 0xc00
	csrTime    = 0xc01
	csrInstret = 0xc02
	csrCycleh  = 0xc80
	csrTimeh   = 0xc81
	csrInstreth = 0xc82

	csrMvendorid = 0xf11
	csrMarchid   = 0xf12
	csrMimpid    = 0xf13
	csrMhartid   = 0xf14
)

// hpmIndex maps a CSR address in one of the three hpm-counter-family
// ranges to a 0-based index into CSR.HPMCounter/HPMEvent, where indices
// 0..28 hold mhpmcounter3..31 (original_source's csr_hpm_event_t table
// starts numbering at mhpmcounter3, spec.md section 3 "29 hpmcounters").
func hpmIndex(addr uint32, base uint32) (int, bool) {
	if addr < base {
		return 0, false
	}
	idx := int(addr - base)
	if idx >= numHPM {
		return 0, false
	}
	return idx, true
}

// readCSR implements a CSR read for the `csrrX` family and for the
// read-only performance-counter shadows in user mode (cycle/time/instret).
// ok is false for an unimplemented or privilege-gated address, which the
// caller turns into ExcIllegalInstruction.
func (c *CPU) readCSR(addr uint32) (uint32, bool) {
	// bits [9:8] of a CSR address give the lowest privilege that may access it
	if Priv((addr>>8)&3) > c.Priv {
		return 0, false
	}
	switch addr {
	case csrSstatus:
		return c.CSR.Mstatus & (mstatusSIEMask | mstatusSPIEMask | mstatusSPPMask | mstatusSUMMask | mstatusMXRMask), true
	case csrSie:
		return c.CSR.Mie & c.CSR.Mideleg, true
	case csrStvec:
		return c.CSR.Stvec, true
	case csrSscratch:
		return c.CSR.Sscratch, true
	case csrSepc:
		return c.CSR.Sepc, true
	case csrScause:
		return uint32(c.CSR.Scause), true
	case csrStval:
		return c.CSR.Stval, true
	case csrSip:
		return c.effectiveMip() & c.CSR.Mideleg, true
	case csrSatp:
		return c.CSR.Satp, true

	case csrMstatus:
		return c.CSR.Mstatus, true
	case csrMisa:
		return 0x40001101, true // RV32IMA, "I" base
	case csrMedeleg:
		return c.CSR.Medeleg, true
	case csrMideleg:
		return c.CSR.Mideleg, true
	case csrMie:
		return c.CSR.Mie, true
	case csrMtvec:
		return c.CSR.Mtvec, true
	case csrMcountinh:
		return c.CSR.Mcountinhibit, true
	case csrMscratch:
		return c.CSR.Mscratch, true
	case csrMepc:
		return c.CSR.Mepc, true
	case csrMcause:
		return uint32(c.CSR.Mcause), true
	case csrMtval:
		return c.CSR.Mtval, true
	case csrMip:
		return c.effectiveMip(), true

	case csrMcycle, csrCycle:
		return uint32(c.CSR.Mcycle), true
	case csrMcycleh, csrCycleh:
		return uint32(c.CSR.Mcycle >> 32), true
	case csrMinstret, csrInstret:
		return uint32(c.CSR.Minstret), true
	case csrMinstreth, csrInstreth:
		return uint32(c.CSR.Minstret >> 32), true
	case csrTime:
		return uint32(c.CSR.Mtime), true
	case csrTimeh:
		return uint32(c.CSR.Mtime >> 32), true

	case csrMvendorid, csrMarchid, csrMimpid:
		return 0, true
	case csrMhartid:
		return c.CSR.Mhartid, true
	}

	if idx, ok := hpmIndex(addr, csrMhpmcounterBase); ok {
		return uint32(c.CSR.HPMCounter[idx]), true
	}
	if idx, ok := hpmIndex(addr, csrMhpmcounterhBase); ok {
		return uint32(c.CSR.HPMCounter[idx] >> 32), true
	}
	if idx, ok := hpmIndex(addr, csrMhpmeventBase); ok {
		return uint32(c.CSR.HPMEvent[idx]), true
	}
	return 0, false
}

// writeCSR implements a CSR write. Read-only addresses (performance
// counter shadows, misa, vendor/arch/imp id) are rejected.
func (c *CPU) writeCSR(addr uint32, v uint32) bool {
	switch addr {
	case csrSstatus:
		mask := uint32(mstatusSIEMask | mstatusSPIEMask | mstatusSPPMask | mstatusSUMMask | mstatusMXRMask)
		c.CSR.Mstatus = (c.CSR.Mstatus &^ mask) | (v & mask)
		return true
	case csrSie:
		c.CSR.Mie = (c.CSR.Mie &^ c.CSR.Mideleg) | (v & c.CSR.Mideleg)
		return true
	case csrStvec:
		c.CSR.Stvec = v
		return true
	case csrSscratch:
		c.CSR.Sscratch = v
		return true
	case csrSepc:
		c.CSR.Sepc = v &^ 3
		return true
	case csrScause:
		c.CSR.Scause = Exception(v)
		return true
	case csrStval:
		c.CSR.Stval = v
		return true
	case csrSip:
		mask := c.CSR.Mideleg & (1<<1 | 1<<5 | 1<<9)
		c.CSR.Mip = (c.CSR.Mip &^ mask) | (v & mask)
		return true
	case csrSatp:
		c.CSR.Satp = v
		return true

	case csrMstatus:
		const writable = mstatusMIEMask | mstatusSIEMask | mstatusMPIEMask | mstatusSPIEMask |
			mstatusSPPMask | mstatusMPPMask | mstatusMPRVMask | mstatusSUMMask | mstatusMXRMask
		c.CSR.Mstatus = (c.CSR.Mstatus &^ writable) | (v & writable)
		return true
	case csrMedeleg:
		c.CSR.Medeleg = v
		return true
	case csrMideleg:
		c.CSR.Mideleg = v
		return true
	case csrMie:
		c.CSR.Mie = v
		return true
	case csrMtvec:
		c.CSR.Mtvec = v
		return true
	case csrMcountinh:
		c.CSR.Mcountinhibit = v
		return true
	case csrMscratch:
		c.CSR.Mscratch = v
		return true
	case csrMepc:
		c.CSR.Mepc = v &^ 3
		return true
	case csrMcause:
		c.CSR.Mcause = Exception(v)
		return true
	case csrMtval:
		c.CSR.Mtval = v
		return true
	case csrMip:
		const writable = 1<<1 | 1<<5 | 1<<9
		c.CSR.Mip = (c.CSR.Mip &^ writable) | (v & writable)
		return true
	}

	if idx, ok := hpmIndex(addr, csrMhpmcounterBase); ok {
		c.CSR.HPMCounter[idx] = (c.CSR.HPMCounter[idx] &^ 0xffffffff) | uint64(v)
		return true
	}
	if idx, ok := hpmIndex(addr, csrMhpmcounterhBase); ok {
		c.CSR.HPMCounter[idx] = (c.CSR.HPMCounter[idx] & 0xffffffff) | (uint64(v) << 32)
		return true
	}
	if idx, ok := hpmIndex(addr, csrMhpmeventBase); ok {
		c.CSR.HPMEvent[idx] = HPMEvent(v)
		return true
	}
	return false
}

// effectiveMip folds the sticky external-SEIP latch into the bit an
// ordinary mip read observes (spec.md's supplemented external_SEIP
// feature; original_source keeps it separate from mip storage so a
// direct CSRRW to mip can't clear a line the PLIC still asserts).
func (c *CPU) effectiveMip() uint32 {
	mip := c.CSR.Mip
	if c.CSR.ExternalSEIP {
		mip |= 1 << IntSupervisorExternal.Code()
	}
	return mip
}
