/*
 * msim - RISC-V instruction decoder (C3 consumer / C5 dispatch)
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

// Handler is a decoded instruction: a pure function of the hart and bus
// that performs the instruction's effect and returns ExcNone or a
// synchronous exception (spec.md section 4.5).
type Handler func(c *CPU, bus Bus, instr uint32) Exception

// fields is the decoded bit layout shared by every RV32 instruction
// format; individual handlers pick the fields they need.
type fields struct {
	opcode uint32
	rd     uint32
	rs1    uint32
	rs2    uint32
	funct3 uint32
	funct7 uint32
}

func decodeFields(instr uint32) fields {
	return fields{
		opcode: instr & 0x7f,
		rd:     (instr >> 7) & 0x1f,
		funct3: (instr >> 12) & 0x7,
		rs1:    (instr >> 15) & 0x1f,
		rs2:    (instr >> 20) & 0x1f,
		funct7: (instr >> 25) & 0x7f,
	}
}

func immI(instr uint32) uint32 {
	return signExtend(instr>>20, 12)
}

func immS(instr uint32) uint32 {
	v := ((instr >> 25) << 5) | ((instr >> 7) & 0x1f)
	return signExtend(v, 12)
}

func immB(instr uint32) uint32 {
	v := (((instr >> 31) & 1) << 12) |
		(((instr >> 7) & 1) << 11) |
		(((instr >> 25) & 0x3f) << 5) |
		(((instr >> 8) & 0xf) << 1)
	return signExtend(v, 13)
}

func immU(instr uint32) uint32 {
	return instr &^ 0xfff
}

func immJ(instr uint32) uint32 {
	v := (((instr >> 31) & 1) << 20) |
		(((instr >> 12) & 0xff) << 12) |
		(((instr >> 20) & 1) << 11) |
		(((instr >> 21) & 0x3ff) << 1)
	return signExtend(v, 21)
}

func signExtend(v uint32, bits int) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}

// Decode turns a raw instruction word into a Handler, matching
// original_source's opcode switch in cpu.c. Unrecognized encodings decode
// to illegalInstruction, which raises ExcIllegalInstruction when invoked
// rather than failing decode itself -- decode never fails, per spec.md
// section 4.5 ("decode itself cannot fail; unknown encodings decode to a
// handler that raises illegal-instruction when run").
func Decode(instr uint32) Handler {
	f := decodeFields(instr)

	switch f.opcode {
	case 0x37:
		return execLUI
	case 0x17:
		return execAUIPC
	case 0x6f:
		return execJAL
	case 0x67:
		if f.funct3 == 0 {
			return execJALR
		}
	case 0x63:
		switch f.funct3 {
		case 0, 1, 4, 5, 6, 7:
			return execBranch
		}
	case 0x03:
		switch f.funct3 {
		case 0, 1, 2, 4, 5:
			return execLoad
		}
	case 0x23:
		switch f.funct3 {
		case 0, 1, 2:
			return execStore
		}
	case 0x13:
		return execOpImm
	case 0x33:
		if f.funct7 == 0x01 {
			return execMulDiv
		}
		return execOp
	case 0x0f:
		return execFence
	case 0x73:
		return execSystem
	case 0x2f:
		return execAtomic
	}
	return illegalInstruction
}

func illegalInstruction(c *CPU, bus Bus, instr uint32) Exception {
	return ExcIllegalInstruction
}
