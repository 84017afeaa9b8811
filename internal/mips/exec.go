/*
 * msim - MIPS R4000 instruction handlers
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

// takeBranch records that the instruction just executed (at c.PC) is a
// taken branch whose target is target. Per original_source's instr_bgez,
// this does not redirect control flow immediately: the delay slot
// (already queued in c.PCNext before this handler ran) still executes
// next. step.go applies the redirect once that delay slot retires.
func (c *CPU) takeBranch(target uint32, kind branchKind) {
	c.PCNext = target
	c.branch = kind
}

// branchTarget16 computes a PC-relative branch target from the
// instruction's 16-bit immediate: target = (address of delay slot) +
// (sign-extended imm << 2), matching instr_bgez's
// "cpu->pc_next.ptr += sign_extend_16_64(instr.i.imm) << TARGET_SHIFT"
// with cpu->pc_next already holding the delay slot's address.
func branchTarget16(delaySlot uint32, imm uint32) uint32 {
	return delaySlot + (imm << 2)
}

// jumpTarget26 computes a J-type absolute target: the top 4 bits of the
// delay slot's address, concatenated with the 26-bit target field
// shifted left 2.
func jumpTarget26(delaySlot uint32, target uint32) uint32 {
	return (delaySlot & 0xf0000000) | (target << 2)
}

// --- SPECIAL (R-type ALU/shift) ---

func execSLL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rt] << f.shamt
	return ExcNone
}

func execSRL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rt] >> f.shamt
	return ExcNone
}

func execSRA(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = uint32(int32(c.Regs[f.rt]) >> f.shamt)
	return ExcNone
}

func execSLLV(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rt] << (c.Regs[f.rs] & 0x1f)
	return ExcNone
}

func execSRLV(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rt] >> (c.Regs[f.rs] & 0x1f)
	return ExcNone
}

func execSRAV(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = uint32(int32(c.Regs[f.rt]) >> (c.Regs[f.rs] & 0x1f))
	return ExcNone
}

func execJR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.takeBranch(c.Regs[f.rs], branchUncond)
	return ExcNone
}

func execJALR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	link := c.PCNext + 4
	c.takeBranch(c.Regs[f.rs], branchUncond)
	rd := f.rd
	if rd == 0 {
		rd = 31
	}
	c.Regs[rd] = link
	return ExcNone
}

func execSyscall(c *CPU, bus Bus, instr uint32) Exception { return ExcSys }
func execBreak(c *CPU, bus Bus, instr uint32) Exception   { return ExcBp }

func execMFHI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.HI
	return ExcNone
}

func execMTHI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.HI = c.Regs[f.rs]
	return ExcNone
}

func execMFLO(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.LO
	return ExcNone
}

func execMTLO(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.LO = c.Regs[f.rs]
	return ExcNone
}

func execMULT(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	prod := int64(int32(c.Regs[f.rs])) * int64(int32(c.Regs[f.rt]))
	c.LO, c.HI = uint32(prod), uint32(prod>>32)
	return ExcNone
}

func execMULTU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	prod := uint64(c.Regs[f.rs]) * uint64(c.Regs[f.rt])
	c.LO, c.HI = uint32(prod), uint32(prod>>32)
	return ExcNone
}

func execDIV(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := int32(c.Regs[f.rs]), int32(c.Regs[f.rt])
	if b == 0 {
		// R4000 leaves LO/HI undefined on division by zero rather than
		// trapping; msim reproduces that rather than inventing a fault.
		return ExcNone
	}
	c.LO, c.HI = uint32(a/b), uint32(a%b)
	return ExcNone
}

func execDIVU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := c.Regs[f.rs], c.Regs[f.rt]
	if b == 0 {
		return ExcNone
	}
	c.LO, c.HI = a/b, a%b
	return ExcNone
}

func execADD(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := int32(c.Regs[f.rs]), int32(c.Regs[f.rt])
	sum := a + b
	if overflowAdd32(a, b, sum) {
		return ExcOv
	}
	c.Regs[f.rd] = uint32(sum)
	return ExcNone
}

func execADDU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rs] + c.Regs[f.rt]
	return ExcNone
}

func execSUB(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := int32(c.Regs[f.rs]), int32(c.Regs[f.rt])
	diff := a - b
	if overflowSub32(a, b, diff) {
		return ExcOv
	}
	c.Regs[f.rd] = uint32(diff)
	return ExcNone
}

func execSUBU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rs] - c.Regs[f.rt]
	return ExcNone
}

func execAND(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rs] & c.Regs[f.rt]
	return ExcNone
}

func execOR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rs] | c.Regs[f.rt]
	return ExcNone
}

func execXOR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = c.Regs[f.rs] ^ c.Regs[f.rt]
	return ExcNone
}

func execNOR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = ^(c.Regs[f.rs] | c.Regs[f.rt])
	return ExcNone
}

func execSLT(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = boolToWord(int32(c.Regs[f.rs]) < int32(c.Regs[f.rt]))
	return ExcNone
}

func execSLTU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rd] = boolToWord(c.Regs[f.rs] < c.Regs[f.rt])
	return ExcNone
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func overflowAdd32(a, b, sum int32) bool {
	return ((a ^ sum) & (b ^ sum)) < 0
}

func overflowSub32(a, b, diff int32) bool {
	return ((a ^ b) & (a ^ diff)) < 0
}

// --- REGIMM and other branches ---

func execBLTZ(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if int32(c.Regs[f.rs]) < 0 {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execBGEZ(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if int32(c.Regs[f.rs]) >= 0 {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execBLTZAL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[31] = c.PCNext + 4
	if int32(c.Regs[f.rs]) < 0 {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execBGEZAL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[31] = c.PCNext + 4
	if int32(c.Regs[f.rs]) >= 0 {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execJ(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.takeBranch(jumpTarget26(c.PCNext, f.target), branchUncond)
	return ExcNone
}

func execJAL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[31] = c.PCNext + 4
	c.takeBranch(jumpTarget26(c.PCNext, f.target), branchUncond)
	return ExcNone
}

func execBEQ(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if c.Regs[f.rs] == c.Regs[f.rt] {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execBNE(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if c.Regs[f.rs] != c.Regs[f.rt] {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execBLEZ(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if int32(c.Regs[f.rs]) <= 0 {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

func execBGTZ(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if int32(c.Regs[f.rs]) > 0 {
		c.takeBranch(branchTarget16(c.PCNext, f.imm), branchCond)
	}
	return ExcNone
}

// --- immediate ALU ---

func execADDI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := int32(c.Regs[f.rs]), int32(f.imm)
	sum := a + b
	if overflowAdd32(a, b, sum) {
		return ExcOv
	}
	c.Regs[f.rt] = uint32(sum)
	return ExcNone
}

func execADDIU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = c.Regs[f.rs] + f.imm
	return ExcNone
}

func execSLTI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = boolToWord(int32(c.Regs[f.rs]) < int32(f.imm))
	return ExcNone
}

func execSLTIU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = boolToWord(c.Regs[f.rs] < f.imm)
	return ExcNone
}

func execANDI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = c.Regs[f.rs] & (instr & 0xffff)
	return ExcNone
}

func execORI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = c.Regs[f.rs] | (instr & 0xffff)
	return ExcNone
}

func execXORI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = c.Regs[f.rs] ^ (instr & 0xffff)
	return ExcNone
}

func execLUI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = (instr & 0xffff) << 16
	return ExcNone
}

// --- CP0 moves and TLB management ---

func execMFC0(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.Regs[f.rt] = c.readCP0(f.rd)
	return ExcNone
}

func execMTC0(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.writeCP0(f.rd, c.Regs[f.rt])
	return ExcNone
}

func (c *CPU) readCP0(reg uint32) uint32 {
	switch reg {
	case cp0Index:
		return c.CP0.Index
	case cp0Random:
		return c.CP0.Random
	case cp0EntryLo0:
		return c.CP0.EntryLo0
	case cp0EntryLo1:
		return c.CP0.EntryLo1
	case cp0Context:
		return c.CP0.Context
	case cp0PageMask:
		return c.CP0.PageMask
	case cp0Wired:
		return c.CP0.Wired
	case cp0BadVAddr:
		return c.CP0.BadVAddr
	case cp0Count:
		return c.CP0.Count
	case cp0EntryHi:
		return c.CP0.EntryHi
	case cp0Compare:
		return c.CP0.Compare
	case cp0Status:
		return c.CP0.Status
	case cp0Cause:
		return c.CP0.Cause
	case cp0EPC:
		return c.CP0.EPC
	case cp0PRId:
		return c.CP0.PRId
	case cp0Config:
		return c.CP0.Config
	default:
		return 0
	}
}

func (c *CPU) writeCP0(reg uint32, v uint32) {
	switch reg {
	case cp0Index:
		c.CP0.Index = v & 0x3f
	case cp0EntryLo0:
		c.CP0.EntryLo0 = v
	case cp0EntryLo1:
		c.CP0.EntryLo1 = v
	case cp0Context:
		c.CP0.Context = v
	case cp0PageMask:
		c.CP0.PageMask = v
	case cp0Wired:
		c.CP0.Wired = v & 0x3f
	case cp0Count:
		c.CP0.Count = v
	case cp0EntryHi:
		c.CP0.EntryHi = v
	case cp0Compare:
		c.CP0.Compare = v
		c.CP0.setIP(7, false) // writing Compare acknowledges the timer interrupt
	case cp0Status:
		c.CP0.Status = v
	case cp0Cause:
		// only the software-interrupt bits (IP1:IP0) are writable
		c.CP0.Cause = (c.CP0.Cause &^ 0x300) | (v & 0x300)
	case cp0Config:
		c.CP0.Config = v
	}
}

func execTLBR(c *CPU, bus Bus, instr uint32) Exception {
	vpn2, asid, global, lo0, lo1 := c.TLB.Read(int(c.CP0.Index))
	c.CP0.EntryHi = (vpn2 << 13) | uint32(asid)
	c.CP0.EntryLo0, c.CP0.EntryLo1 = lo0, lo1
	_ = global
	return ExcNone
}

func execTLBWI(c *CPU, bus Bus, instr uint32) Exception {
	c.writeTLBEntry(int(c.CP0.Index))
	return ExcNone
}

func execTLBWR(c *CPU, bus Bus, instr uint32) Exception {
	c.writeTLBEntry(int(c.CP0.Random))
	return ExcNone
}

func (c *CPU) writeTLBEntry(index int) {
	vpn2 := c.CP0.EntryHi >> 13
	asid := uint8(c.CP0.EntryHi)
	global := c.CP0.EntryLo0&1 != 0 && c.CP0.EntryLo1&1 != 0
	c.TLB.Write(index, vpn2, asid, global, c.CP0.EntryLo0, c.CP0.EntryLo1)
}

func execTLBP(c *CPU, bus Bus, instr uint32) Exception {
	vpn2 := c.CP0.EntryHi >> 13
	asid := uint8(c.CP0.EntryHi)
	if idx := c.TLB.Probe(vpn2, asid); idx >= 0 {
		c.CP0.Index = uint32(idx)
	} else {
		c.CP0.Index = 1 << 31
	}
	return ExcNone
}

func execERET(c *CPU, bus Bus, instr uint32) Exception {
	c.CP0.Status &^= 1 << statusEXLBit
	c.SetPC(c.CP0.EPC)
	c.reservedValid = false
	return ExcNone
}

// --- loads and stores ---

func execLB(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	v, ex := c.readByte(bus, c.Regs[f.rs]+f.imm)
	if ex != ExcNone {
		return ex
	}
	c.Regs[f.rt] = uint32(int32(int8(v)))
	return ExcNone
}

func execLBU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	v, ex := c.readByte(bus, c.Regs[f.rs]+f.imm)
	if ex != ExcNone {
		return ex
	}
	c.Regs[f.rt] = uint32(v)
	return ExcNone
}

func execLH(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	v, ex := c.readHalf(bus, c.Regs[f.rs]+f.imm)
	if ex != ExcNone {
		return ex
	}
	c.Regs[f.rt] = uint32(int32(int16(v)))
	return ExcNone
}

func execLHU(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	v, ex := c.readHalf(bus, c.Regs[f.rs]+f.imm)
	if ex != ExcNone {
		return ex
	}
	c.Regs[f.rt] = uint32(v)
	return ExcNone
}

func execLW(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	v, ex := c.readWord(bus, c.Regs[f.rs]+f.imm)
	if ex != ExcNone {
		return ex
	}
	c.Regs[f.rt] = v
	return ExcNone
}

func execSB(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	return c.writeByte(bus, c.Regs[f.rs]+f.imm, uint8(c.Regs[f.rt]))
}

func execSH(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	return c.writeHalf(bus, c.Regs[f.rs]+f.imm, uint16(c.Regs[f.rt]))
}

func execSW(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	return c.writeWord(bus, c.Regs[f.rs]+f.imm, c.Regs[f.rt])
}

// execLL/execSC give MIPS the same load-linked/store-conditional atomic
// primitive internal/riscv implements for LR.W/SC.W, over the same
// cross-hart reservation set (spec.md section 4.9 applies to both cores).
func execLL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	addr := c.Regs[f.rs] + f.imm
	v, ex := c.readWord(bus, addr)
	if ex != ExcNone {
		return ex
	}
	c.Regs[f.rt] = v
	phys, _, _ := c.Translate(addr, IntentLoad)
	c.reservedAddr = phys &^ 3
	c.reservedValid = true
	return ExcNone
}

func execSC(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	addr := c.Regs[f.rs] + f.imm
	phys, ex, ok := c.Translate(addr, IntentStore)
	if !ok {
		return ex
	}
	if !c.reservedValid || c.reservedAddr != phys&^3 {
		c.Regs[f.rt] = 0
		return ExcNone
	}
	ex = c.writeWord(bus, addr, c.Regs[f.rt])
	if ex != ExcNone {
		return ex
	}
	c.reservedValid = false
	c.Regs[f.rt] = 1
	return ExcNone
}
