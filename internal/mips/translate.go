/*
 * msim - MIPS R4000 address translation
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

// The classic 32-bit MIPS segmentation (spec.md section 4.5): kuseg is
// always mapped through the TLB; kseg0/kseg1 are unmapped, direct-mapped
// onto the low 512 MiB of physical memory (kseg1 additionally
// uncached, which msim's single physical-memory model treats the same as
// kseg0); kseg2 is mapped and kernel-only.
const (
	kusegEnd = 0x80000000
	kseg0End = 0xA0000000
	kseg1End = 0xC0000000
)

// Intent distinguishes an instruction fetch, a load and a store: a store
// selects the dirty-bit check and raises TLBS or Mod, while a fetch and a
// load both raise TLBL, and the lookup itself is identical.
type Intent int

const (
	IntentFetch Intent = iota
	IntentLoad
	IntentStore
)

// Translate converts a virtual address to a physical one, consulting the
// TLB only for kuseg/kseg2 addresses. asid comes from CP0 EntryHi.
func (c *CPU) Translate(vaddr uint32, intent Intent) (phys uint32, exc Exception, ok bool) {
	switch {
	case vaddr < kusegEnd:
		return c.translateMapped(vaddr, intent)
	case vaddr < kseg0End:
		return vaddr - kusegEnd, 0, true
	case vaddr < kseg1End:
		return vaddr - kseg0End, 0, true
	default:
		return c.translateMapped(vaddr, intent)
	}
}

func (c *CPU) translateMapped(vaddr uint32, intent Intent) (uint32, Exception, bool) {
	asid := uint8(c.CP0.EntryHi)
	pfn, kind := c.TLB.Lookup(vaddr, asid, intent == IntentStore)
	switch kind {
	case TLBHit:
		phys := (pfn << 12) | (vaddr & (pageSize - 1))
		return phys, 0, true
	case TLBMiss:
		if intent == IntentStore {
			return 0, ExcTLBS, false
		}
		return 0, ExcTLBL, false
	case TLBInvalid:
		if intent == IntentStore {
			return 0, ExcTLBS, false
		}
		return 0, ExcTLBL, false
	case TLBModified:
		return 0, ExcMod, false
	default:
		return 0, ExcTLBL, false
	}
}
