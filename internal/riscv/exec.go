/*
 * msim - RV32IMA instruction handlers (C5)
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

// reg reads a general register; x0 always reads 0 (spec.md section 8,
// "x0 always reads as 0" is a tested invariant).
func (c *CPU) reg(n uint32) uint32 {
	return c.Regs[n&0x1f]
}

// setReg writes a general register; writes to x0 are dropped.
func (c *CPU) setReg(n uint32, v uint32) {
	if n == 0 {
		return
	}
	c.Regs[n&0x1f] = v
}

func execLUI(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.setReg(f.rd, immU(instr))
	return ExcNone
}

func execAUIPC(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	c.setReg(f.rd, c.PC+immU(instr))
	return ExcNone
}

func execJAL(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	target := c.PC + immJ(instr)
	if target%4 != 0 {
		c.CSR.TvalNext = target
		return ExcInstrAddrMisaligned
	}
	c.setReg(f.rd, c.PC+4)
	c.PCNext = target
	c.branchKind = branchUncond
	return ExcNone
}

func execJALR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	target := (c.reg(f.rs1) + immI(instr)) &^ 1
	if target%4 != 0 {
		c.CSR.TvalNext = target
		return ExcInstrAddrMisaligned
	}
	link := c.PC + 4
	c.PCNext = target
	c.setReg(f.rd, link)
	c.branchKind = branchUncond
	return ExcNone
}

func execBranch(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := c.reg(f.rs1), c.reg(f.rs2)
	var taken bool
	switch f.funct3 {
	case 0: // beq
		taken = a == b
	case 1: // bne
		taken = a != b
	case 4: // blt
		taken = int32(a) < int32(b)
	case 5: // bge
		taken = int32(a) >= int32(b)
	case 6: // bltu
		taken = a < b
	case 7: // bgeu
		taken = a >= b
	default:
		return ExcIllegalInstruction
	}
	if !taken {
		return ExcNone
	}
	target := c.PC + immB(instr)
	if target%4 != 0 {
		c.CSR.TvalNext = target
		return ExcInstrAddrMisaligned
	}
	c.PCNext = target
	c.branchKind = branchCond
	return ExcNone
}

func execLoad(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	addr := c.reg(f.rs1) + immI(instr)
	switch f.funct3 {
	case 0: // lb
		v, ex := c.ReadMem8(bus, addr, false)
		if ex != ExcNone {
			return ex
		}
		c.setReg(f.rd, signExtend(uint32(v), 8))
	case 1: // lh
		v, ex := c.ReadMem16(bus, addr, false, false)
		if ex != ExcNone {
			return ex
		}
		c.setReg(f.rd, signExtend(uint32(v), 16))
	case 2: // lw
		v, ex := c.ReadMem32(bus, addr, false, false)
		if ex != ExcNone {
			return ex
		}
		c.setReg(f.rd, v)
	case 4: // lbu
		v, ex := c.ReadMem8(bus, addr, false)
		if ex != ExcNone {
			return ex
		}
		c.setReg(f.rd, uint32(v))
	case 5: // lhu
		v, ex := c.ReadMem16(bus, addr, false, false)
		if ex != ExcNone {
			return ex
		}
		c.setReg(f.rd, uint32(v))
	default:
		return ExcIllegalInstruction
	}
	return ExcNone
}

func execStore(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	addr := c.reg(f.rs1) + immS(instr)
	v := c.reg(f.rs2)
	switch f.funct3 {
	case 0:
		return c.WriteMem8(bus, addr, uint8(v), false)
	case 1:
		return c.WriteMem16(bus, addr, uint16(v), false)
	case 2:
		return c.WriteMem32(bus, addr, v, false)
	}
	return ExcIllegalInstruction
}

func execOpImm(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a := c.reg(f.rs1)
	imm := immI(instr)
	shamt := imm & 0x1f
	var result uint32
	switch f.funct3 {
	case 0: // addi
		result = a + imm
	case 1: // slli
		if f.funct7 != 0 {
			return ExcIllegalInstruction
		}
		result = a << shamt
	case 2: // slti
		result = boolToWord(int32(a) < int32(imm))
	case 3: // sltiu
		result = boolToWord(a < imm)
	case 4: // xori
		result = a ^ imm
	case 5: // srli/srai
		switch f.funct7 {
		case 0x00:
			result = a >> shamt
		case 0x20:
			result = uint32(int32(a) >> shamt)
		default:
			return ExcIllegalInstruction
		}
	case 6: // ori
		result = a | imm
	case 7: // andi
		result = a & imm
	}
	c.setReg(f.rd, result)
	return ExcNone
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func execOp(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := c.reg(f.rs1), c.reg(f.rs2)
	var result uint32
	switch {
	case f.funct7 == 0x00 && f.funct3 == 0: // add
		result = a + b
	case f.funct7 == 0x20 && f.funct3 == 0: // sub
		result = a - b
	case f.funct7 == 0x00 && f.funct3 == 1: // sll
		result = a << (b & 0x1f)
	case f.funct7 == 0x00 && f.funct3 == 2: // slt
		result = boolToWord(int32(a) < int32(b))
	case f.funct7 == 0x00 && f.funct3 == 3: // sltu
		result = boolToWord(a < b)
	case f.funct7 == 0x00 && f.funct3 == 4: // xor
		result = a ^ b
	case f.funct7 == 0x00 && f.funct3 == 5: // srl
		result = a >> (b & 0x1f)
	case f.funct7 == 0x20 && f.funct3 == 5: // sra
		result = uint32(int32(a) >> (b & 0x1f))
	case f.funct7 == 0x00 && f.funct3 == 6: // or
		result = a | b
	case f.funct7 == 0x00 && f.funct3 == 7: // and
		result = a & b
	default:
		return ExcIllegalInstruction
	}
	c.setReg(f.rd, result)
	return ExcNone
}

// execMulDiv implements RV32M (funct7 == 0x01 in the OP opcode map).
func execMulDiv(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	a, b := c.reg(f.rs1), c.reg(f.rs2)
	var result uint32
	switch f.funct3 {
	case 0: // mul
		result = a * b
	case 1: // mulh
		result = uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case 2: // mulhsu
		result = uint32((int64(int32(a)) * int64(uint64(b))) >> 32)
	case 3: // mulhu
		result = uint32((uint64(a) * uint64(b)) >> 32)
	case 4: // div
		if b == 0 {
			result = 0xffffffff
		} else if int32(a) == -2147483648 && int32(b) == -1 {
			result = a
		} else {
			result = uint32(int32(a) / int32(b))
		}
	case 5: // divu
		if b == 0 {
			result = 0xffffffff
		} else {
			result = a / b
		}
	case 6: // rem
		if b == 0 {
			result = a
		} else if int32(a) == -2147483648 && int32(b) == -1 {
			result = 0
		} else {
			result = uint32(int32(a) % int32(b))
		}
	case 7: // remu
		if b == 0 {
			result = a
		} else {
			result = a % b
		}
	}
	c.setReg(f.rd, result)
	return ExcNone
}

// execFence treats FENCE/FENCE.I as a no-op: msim is single-threaded
// cooperative scheduling with no pipeline or private caches to flush
// (spec.md section 5).
func execFence(c *CPU, bus Bus, instr uint32) Exception {
	return ExcNone
}
