/*
 * msim - MIPS R4000 instruction decoder
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

// Handler is a decoded instruction, mirroring internal/riscv.Handler's
// shape: a pure function of the hart and bus returning ExcNone or a
// synchronous exception.
type Handler func(c *CPU, bus Bus, instr uint32) Exception

type fields struct {
	opcode uint32
	rs     uint32
	rt     uint32
	rd     uint32
	shamt  uint32
	funct  uint32
	imm    uint32 // sign-extended 16-bit immediate
	target uint32 // 26-bit jump target field, not yet shifted/merged
}

func decodeFields(instr uint32) fields {
	return fields{
		opcode: instr >> 26,
		rs:     (instr >> 21) & 0x1f,
		rt:     (instr >> 16) & 0x1f,
		rd:     (instr >> 11) & 0x1f,
		shamt:  (instr >> 6) & 0x1f,
		funct:  instr & 0x3f,
		imm:    signExtend16(uint32(instr & 0xffff)),
		target: instr & 0x03ffffff,
	}
}

func signExtend16(v uint32) uint32 {
	return uint32(int32(int16(v)))
}

// Decode turns a raw instruction word into a Handler, matching
// original_source's opcode/funct switch in the R4000 interpreter.
// Unrecognized encodings decode to reservedInstruction rather than
// failing decode itself, matching internal/riscv's "decode never fails"
// convention.
func Decode(instr uint32) Handler {
	f := decodeFields(instr)

	switch f.opcode {
	case 0x00: // SPECIAL
		switch f.funct {
		case 0x00:
			return execSLL
		case 0x02:
			return execSRL
		case 0x03:
			return execSRA
		case 0x04:
			return execSLLV
		case 0x06:
			return execSRLV
		case 0x07:
			return execSRAV
		case 0x08:
			return execJR
		case 0x09:
			return execJALR
		case 0x0c:
			return execSyscall
		case 0x0d:
			return execBreak
		case 0x10:
			return execMFHI
		case 0x11:
			return execMTHI
		case 0x12:
			return execMFLO
		case 0x13:
			return execMTLO
		case 0x18:
			return execMULT
		case 0x19:
			return execMULTU
		case 0x1a:
			return execDIV
		case 0x1b:
			return execDIVU
		case 0x20:
			return execADD
		case 0x21:
			return execADDU
		case 0x22:
			return execSUB
		case 0x23:
			return execSUBU
		case 0x24:
			return execAND
		case 0x25:
			return execOR
		case 0x26:
			return execXOR
		case 0x27:
			return execNOR
		case 0x2a:
			return execSLT
		case 0x2b:
			return execSLTU
		}
	case 0x01: // REGIMM
		switch f.rt {
		case 0x00:
			return execBLTZ
		case 0x01:
			return execBGEZ
		case 0x10:
			return execBLTZAL
		case 0x11:
			return execBGEZAL
		}
	case 0x02:
		return execJ
	case 0x03:
		return execJAL
	case 0x04:
		return execBEQ
	case 0x05:
		return execBNE
	case 0x06:
		return execBLEZ
	case 0x07:
		return execBGTZ
	case 0x08:
		return execADDI
	case 0x09:
		return execADDIU
	case 0x0a:
		return execSLTI
	case 0x0b:
		return execSLTIU
	case 0x0c:
		return execANDI
	case 0x0d:
		return execORI
	case 0x0e:
		return execXORI
	case 0x0f:
		return execLUI
	case 0x10: // COP0
		return decodeCop0(f)
	case 0x20:
		return execLB
	case 0x21:
		return execLH
	case 0x23:
		return execLW
	case 0x24:
		return execLBU
	case 0x25:
		return execLHU
	case 0x28:
		return execSB
	case 0x29:
		return execSH
	case 0x2b:
		return execSW
	case 0x30:
		return execLL
	case 0x38:
		return execSC
	}
	return reservedInstruction
}

func decodeCop0(f fields) Handler {
	if f.rs == 0x10 { // CO bit set: TLB/privileged function, selected by funct
		switch f.funct {
		case 0x01:
			return execTLBR
		case 0x02:
			return execTLBWI
		case 0x06:
			return execTLBWR
		case 0x08:
			return execTLBP
		case 0x18:
			return execERET
		}
		return reservedInstruction
	}
	switch f.rs {
	case 0x00:
		return execMFC0
	case 0x04:
		return execMTC0
	}
	return reservedInstruction
}

func reservedInstruction(c *CPU, bus Bus, instr uint32) Exception {
	return ExcRI
}
