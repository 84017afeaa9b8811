/*
 * msim - MIPS R4000 TLB
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

// tlbEntries is the R4000's fixed TLB size.
const tlbEntries = 48

// pageSize is the default (PageMask == 0) 4 KiB page; msim does not
// implement the R4000's variable page-size TLB masks (spec.md's Non-goals
// exclude "non-default TLB page sizes").
const pageSize = 4096

// tlbEntry is one joint (even/odd) TLB entry: a single EntryHi VPN2/ASID
// pair maps to two physical pages, EntryLo0 for the even virtual page and
// EntryLo1 for the odd one (spec.md section 4.5).
type tlbEntry struct {
	vpn2   uint32 // virtual page number / 2 (bits [31:13])
	asid   uint8
	global bool

	pfn0, pfn1   uint32
	valid0, valid1 bool
	dirty0, dirty1 bool
}

// TLB is the R4000's 48-entry joint TLB; the Index/Random registers that
// select an entry live in CP0.
type TLB struct {
	entries [tlbEntries]tlbEntry
}

func (t *TLB) reset() {
	*t = TLB{}
}

// TLBMiss, TLBInvalid and TLBModified are the three distinct miss
// outcomes spec.md section 4.5 requires the translator to distinguish.
type MissKind int

const (
	TLBHit MissKind = iota
	TLBMiss
	TLBInvalid
	TLBModified
)

// Lookup translates a virtual address for asid, returning the physical
// frame number (bits [31:12]) on a hit. write selects whether a dirty-bit
// check (TLB Mod) applies.
func (t *TLB) Lookup(vaddr uint32, asid uint8, write bool) (pfn uint32, kind MissKind) {
	vpn2 := vaddr >> 13
	odd := (vaddr>>12)&1 != 0

	for _, e := range t.entries {
		if !(e.vpn2 == vpn2 && (e.global || e.asid == asid)) {
			continue
		}
		valid, dirty, pageFrame := e.valid0, e.dirty0, e.pfn0
		if odd {
			valid, dirty, pageFrame = e.valid1, e.dirty1, e.pfn1
		}
		if !valid {
			return 0, TLBInvalid
		}
		if write && !dirty {
			return 0, TLBModified
		}
		return pageFrame, TLBHit
	}
	return 0, TLBMiss
}

// Probe implements TLBP: find the entry matching the current EntryHi
// (VPN2+ASID, or any ASID if global), returning its index or -1.
func (t *TLB) Probe(vpn2 uint32, asid uint8) int {
	for i, e := range t.entries {
		if e.vpn2 == vpn2 && (e.global || e.asid == asid) {
			return i
		}
	}
	return -1
}

// Read implements TLBR: decode index's entry into EntryHi/EntryLo0/
// EntryLo1-shaped fields, with G set in both EntryLo values for a global
// entry.
func (t *TLB) Read(index int) (vpn2 uint32, asid uint8, global bool, lo0, lo1 uint32) {
	e := t.entries[index%tlbEntries]
	lo0, lo1 = packEntryLo(e.pfn0, e.valid0, e.dirty0), packEntryLo(e.pfn1, e.valid1, e.dirty1)
	if e.global {
		lo0 |= 1 << entryLoGBit
		lo1 |= 1 << entryLoGBit
	}
	return e.vpn2, e.asid, e.global, lo0, lo1
}

// Write implements TLBWI/TLBWR: install an entry built from the current
// EntryHi/EntryLo0/EntryLo1 register values at index.
func (t *TLB) Write(index int, vpn2 uint32, asid uint8, global bool, lo0, lo1 uint32) {
	pfn0, v0, d0 := unpackEntryLo(lo0)
	pfn1, v1, d1 := unpackEntryLo(lo1)
	t.entries[index%tlbEntries] = tlbEntry{
		vpn2: vpn2, asid: asid, global: global,
		pfn0: pfn0, valid0: v0, dirty0: d0,
		pfn1: pfn1, valid1: v1, dirty1: d1,
	}
}

// EntryLo bit layout: [31:6] PFN, [5:3] C (cache attribute, ignored by
// msim's uncached-everywhere model), [2] D (dirty), [1] V (valid), [0] G.
const (
	entryLoGBit = 0
	entryLoVBit = 1
	entryLoDBit = 2
	entryLoPFNShift = 6
)

func packEntryLo(pfn uint32, valid, dirty bool) uint32 {
	v := pfn << entryLoPFNShift
	if valid {
		v |= 1 << entryLoVBit
	}
	if dirty {
		v |= 1 << entryLoDBit
	}
	return v
}

func unpackEntryLo(lo uint32) (pfn uint32, valid, dirty bool) {
	return lo >> entryLoPFNShift, lo&(1<<entryLoVBit) != 0, lo&(1<<entryLoDBit) != 0
}
