/*
 * msim - MIPS R4000 core tests
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

import "testing"

// fakeBus mirrors internal/riscv's test fake: flat byte-addressed
// physical memory, enough to drive a hart running from unmapped kseg0
// with the TLB untouched (only the TLB tests use mapped addresses).
type fakeBus struct {
	mem       map[uint64]byte
	reserved  map[uint32]bool
	pcBreaks  map[uint64]bool
	memBreaks map[uint64]bool
	now       uint64
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		mem:       make(map[uint64]byte),
		reserved:  make(map[uint32]bool),
		pcBreaks:  make(map[uint64]bool),
		memBreaks: make(map[uint64]bool),
	}
}

func (b *fakeBus) Read8(phys uint64, noisy bool) uint8 { return b.mem[phys] }

func (b *fakeBus) Read16(phys uint64, noisy bool) uint16 {
	return uint16(b.Read8(phys, noisy)) | uint16(b.Read8(phys+1, noisy))<<8
}

func (b *fakeBus) Read32(phys uint64, noisy bool) uint32 {
	return uint32(b.Read16(phys, noisy)) | uint32(b.Read16(phys+2, noisy))<<16
}

func (b *fakeBus) Write8(phys uint64, v uint8, noisy bool) bool {
	b.mem[phys] = v
	return true
}

func (b *fakeBus) Write16(phys uint64, v uint16, noisy bool) bool {
	b.Write8(phys, uint8(v), noisy)
	b.Write8(phys+1, uint8(v>>8), noisy)
	return true
}

func (b *fakeBus) Write32(phys uint64, v uint32, noisy bool) bool {
	b.Write16(phys, uint16(v), noisy)
	b.Write16(phys+2, uint16(v>>16), noisy)
	return true
}

func (b *fakeBus) FetchHandler(phys uint64) (Handler, bool) {
	return Decode(b.Read32(phys, false)), true
}

func (b *fakeBus) InvalidateReservations(hartID uint32, alignedAddr uint32) {
	delete(b.reserved, alignedAddr)
}

func (b *fakeBus) CheckMemBreak(phys uint64, write bool) bool { return b.memBreaks[phys] }
func (b *fakeBus) CheckPCBreak(phys uint64) bool              { return b.pcBreaks[phys] }
func (b *fakeBus) Now() uint64                                { return b.now }

// storeWord stores v at the physical address a kseg0 virtual address
// maps to, so a word stored at c.PC is the word the hart fetches.
func (b *fakeBus) storeWord(addr uint32, v uint32) {
	if addr >= kusegEnd && addr < kseg0End {
		addr -= kusegEnd
	}
	b.Write32(uint64(addr), v, false)
}

// --- instruction encoders, just enough for the tests below ---

func encR(opcode, rs, rt, rd, shamt, funct uint32) uint32 {
	return (opcode << 26) | (rs << 21) | (rt << 16) | (rd << 11) | (shamt << 6) | funct
}

func encI(opcode, rs, rt uint32, imm uint16) uint32 {
	return (opcode << 26) | (rs << 21) | (rt << 16) | uint32(imm)
}

func encJ(opcode, target uint32) uint32 {
	return (opcode << 26) | (target & 0x03ffffff)
}

func newTestCPU() *CPU {
	c := New(0)
	c.SetPC(kseg0End - pageSize) // arbitrary unmapped kseg0 address
	return c
}

func TestADDU(t *testing.T) {
	c := newTestCPU()
	bus := newFakeBus()
	c.Regs[1] = 5
	c.Regs[2] = 7
	bus.storeWord(c.PC, encR(0x00, 1, 2, 3, 0, 0x21)) // addu $3, $1, $2

	res := c.Step(bus)
	if !res.Retired || c.Regs[3] != 12 {
		t.Fatalf("addu: got regs[3]=%d retired=%v", c.Regs[3], res.Retired)
	}
}

func TestLoadStoreWord(t *testing.T) {
	c := newTestCPU()
	bus := newFakeBus()
	base := c.PC
	c.Regs[4] = base + 0x100
	c.Regs[5] = 0xdeadbeef
	bus.storeWord(base, encI(0x2b, 4, 5, 0)) // sw $5, 0($4)
	bus.storeWord(base+4, encI(0x23, 4, 6, 0)) // lw $6, 0($4)

	if res := c.Step(bus); !res.Retired {
		t.Fatalf("sw did not retire: %+v", res)
	}
	if res := c.Step(bus); !res.Retired {
		t.Fatalf("lw did not retire: %+v", res)
	}
	if c.Regs[6] != 0xdeadbeef {
		t.Fatalf("lw: got %#x, want 0xdeadbeef", c.Regs[6])
	}
}

// TestBranchDelaySlot is the scenario the review specifically calls out:
// a taken BGEZ must still execute the instruction immediately following
// it (the delay slot) before control reaches the branch target, per
// original_source's instr_bgez.
func TestBranchDelaySlot(t *testing.T) {
	c := newTestCPU()
	bus := newFakeBus()
	base := c.PC

	c.Regs[1] = 0       // rs >= 0, so BGEZ is taken
	c.Regs[2] = 0        // delay slot will set this to 99
	target := base + 0x20

	// bgez $1, +7  (branch target = (base+4) + 7*4 = base+32 = target)
	bus.storeWord(base, encI(0x01, 1, 0x01, 7))
	// delay slot: addiu $2, $0, 99 -- must execute before the branch lands
	bus.storeWord(base+4, encI(0x09, 0, 2, 99))
	// fallthrough instruction the branch must NOT execute
	bus.storeWord(base+8, encI(0x09, 0, 3, 1))
	// instruction at the branch target
	bus.storeWord(target, encI(0x09, 0, 4, 77))

	res := c.Step(bus) // executes bgez itself
	if !res.Retired {
		t.Fatalf("bgez did not retire: %+v", res)
	}
	if c.PC != base+4 {
		t.Fatalf("after the branch instruction, PC should be the delay slot %#x, got %#x", base+4, c.PC)
	}

	res = c.Step(bus) // executes the delay slot
	if !res.Retired || c.Regs[2] != 99 {
		t.Fatalf("delay slot did not execute: regs[2]=%d retired=%v", c.Regs[2], res.Retired)
	}
	if c.PC != target {
		t.Fatalf("after the delay slot, PC should be the branch target %#x, got %#x", target, c.PC)
	}

	res = c.Step(bus) // executes the instruction at the branch target
	if !res.Retired || c.Regs[4] != 77 {
		t.Fatalf("branch target did not execute: regs[4]=%d retired=%v", c.Regs[4], res.Retired)
	}
	if c.Regs[3] != 0 {
		t.Fatalf("the fallthrough instruction at base+8 must never execute, but regs[3]=%d", c.Regs[3])
	}
}

func TestTLBMissRaisesException(t *testing.T) {
	c := newTestCPU()
	bus := newFakeBus()
	c.SetPC(0x00400000) // kuseg, mapped, and nothing is in the TLB
	bus.storeWord(0, encR(0, 0, 0, 0, 0, 0)) // irrelevant: fetch should fault first

	res := c.Step(bus)
	if !res.Trapped || res.Cause != ExcTLBL {
		t.Fatalf("expected a TLBL fetch miss, got %+v", res)
	}
	if c.CP0.EPC != 0x00400000 {
		t.Fatalf("EPC should be the faulting fetch address, got %#x", c.CP0.EPC)
	}
}

func TestTLBWriteAndLookup(t *testing.T) {
	c := newTestCPU()

	vaddr := uint32(0x00400000)
	c.CP0.EntryHi = (vaddr >> 13) << 13
	c.CP0.EntryLo0 = packEntryLo(0x1234, true, true)
	c.writeTLBEntry(0)

	pfn, kind := c.TLB.Lookup(vaddr, 0, false)
	if kind != TLBHit || pfn != 0x1234 {
		t.Fatalf("expected a hit at pfn 0x1234, got pfn=%#x kind=%v", pfn, kind)
	}
}
