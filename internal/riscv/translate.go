/*
 * msim - Sv32 address translator (C4)
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

// Intent is the kind of access being translated.
type Intent int

const (
	IntentLoad Intent = iota
	IntentStore
	IntentFetch
)

// pte is an unpacked Sv32 page-table entry.
type pte struct {
	v, r, w, x, u, g, a, d bool
	ppn                    uint32 // 22 bits
}

func unpackPTE(word uint32) pte {
	return pte{
		v:   word&0x001 != 0,
		r:   word&0x002 != 0,
		w:   word&0x004 != 0,
		x:   word&0x008 != 0,
		u:   word&0x010 != 0,
		g:   word&0x020 != 0,
		a:   word&0x040 != 0,
		d:   word&0x080 != 0,
		ppn: (word >> 10) & 0x3fffff,
	}
}

func packPTE(p pte) uint32 {
	w := uint32(0)
	if p.v {
		w |= 0x001
	}
	if p.r {
		w |= 0x002
	}
	if p.w {
		w |= 0x004
	}
	if p.x {
		w |= 0x008
	}
	if p.u {
		w |= 0x010
	}
	if p.g {
		w |= 0x020
	}
	if p.a {
		w |= 0x040
	}
	if p.d {
		w |= 0x080
	}
	w |= (p.ppn & 0x3fffff) << 10
	return w
}

func (p pte) isLeaf() bool  { return p.r || p.w || p.x }
func (p pte) isValid() bool { return p.v && !(p.w && !p.r) }
func (p pte) ppn0() uint32  { return p.ppn & 0x3ff }
func (p pte) ppn1() uint32  { return (p.ppn >> 10) & 0xfff }

func pageFaultFor(intent Intent) Exception {
	switch intent {
	case IntentFetch:
		return ExcInstrPageFault
	case IntentStore:
		return ExcStorePageFault
	default:
		return ExcLoadPageFault
	}
}

// sv32EffectivePriv is the privilege used for the permission check: MPP
// when MPRV is set and intent is not a fetch, else the hart's real
// privilege (spec.md section 4.4).
func (c *CPU) sv32EffectivePriv(intent Intent) Priv {
	return c.effectivePriv(intent == IntentFetch)
}

func (c *CPU) isAccessAllowed(p pte, intent Intent) bool {
	wr := intent == IntentStore
	fetch := intent == IntentFetch

	if wr && !p.w {
		return false
	}
	if fetch && !p.x {
		return false
	}

	readableViaMXR := c.CSR.MXR() && p.x
	if !wr && !fetch && !p.r && !readableViaMXR {
		return false
	}

	priv := c.sv32EffectivePriv(intent)
	if priv == PrivSupervisor {
		if !c.CSR.SUM() && p.u {
			return false
		}
		if fetch && p.u {
			return false
		}
	}
	if priv == PrivUser && !p.u {
		return false
	}
	return true
}

func makePhysFromPPN(virt uint32, p pte, megapage bool) uint64 {
	pageOffset := uint64(virt & 0x00000fff)
	virtVPN0 := uint64(virt&0x003ff000) >> 0
	ppn0 := uint64(p.ppn0()) << 12
	ppn1 := uint64(p.ppn1()) << 22
	phys0 := ppn0
	if megapage {
		phys0 = virtVPN0
	}
	return ppn1 | phys0 | pageOffset
}

// Translate implements the Sv32 two-level page walk of spec.md section
// 4.4, grounded verbatim on original_source's rv_convert_addr. Returns
// the physical address and ExcNone on success, or a page-fault exception
// of the kind matching intent.
func (c *CPU) Translate(bus Bus, virt uint32, intent Intent, noisy bool) (uint64, Exception) {
	satpActive := !c.CSR.SatpBare() && c.sv32EffectivePriv(intent) <= PrivSupervisor

	if !satpActive {
		return uint64(virt), ExcNone
	}

	vpn0 := (virt & 0x003ff000) >> 12
	vpn1 := (virt & 0xffc00000) >> 22
	ppn := c.CSR.SatpPPN()

	const pageSize = 12
	const pteSize = 4

	a := uint64(ppn) << pageSize
	pteAddr := a + uint64(vpn1)*pteSize

	pteVal := bus.Read32(pteAddr, noisy)
	p := unpackPTE(pteVal)

	if !p.isValid() {
		return 0, pageFaultFor(intent)
	}

	megapage := false
	if p.isLeaf() {
		if p.ppn0() != 0 {
			return 0, pageFaultFor(intent)
		}
		megapage = true
	} else {
		a = uint64(p.ppn) << pageSize
		pteAddr = a + uint64(vpn0)*pteSize
		pteVal = bus.Read32(pteAddr, noisy)
		p = unpackPTE(pteVal)
		if !p.isValid() || !p.isLeaf() {
			return 0, pageFaultFor(intent)
		}
	}

	if !c.isAccessAllowed(p, intent) {
		return 0, pageFaultFor(intent)
	}

	p.a = true
	if intent == IntentStore {
		p.d = true
	}

	if noisy {
		bus.Write32(pteAddr, packPTE(p), true)
	}

	return makePhysFromPPN(virt, p, megapage), ExcNone
}
