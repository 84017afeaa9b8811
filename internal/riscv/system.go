/*
 * msim - SYSTEM opcode: ECALL/EBREAK/MRET/SRET/WFI/CSR instructions
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

const (
	priv12Ecall = 0x000
	priv12Ebreak = 0x001
	priv12Sret  = 0x102
	priv12Mret  = 0x302
	priv12Wfi   = 0x105
)

func execSystem(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if f.funct3 == 0 {
		return execPriv(c, bus, instr)
	}
	return execCSR(c, bus, instr)
}

func execPriv(c *CPU, bus Bus, instr uint32) Exception {
	imm12 := instr >> 20
	switch imm12 {
	case priv12Ecall:
		switch c.Priv {
		case PrivUser:
			return ExcEcallU
		case PrivSupervisor:
			return ExcEcallS
		default:
			return ExcEcallM
		}
	case priv12Ebreak:
		return ExcBreakpoint
	case priv12Sret:
		if c.Priv == PrivUser {
			return ExcIllegalInstruction
		}
		c.Priv = c.CSR.SPP()
		c.CSR.SetSIE(c.CSR.SPIE())
		c.CSR.SetSPIE(true)
		c.CSR.SetSPP(PrivUser)
		c.PCNext = c.CSR.Sepc
		c.branchKind = branchUncond
		return ExcNone
	case priv12Mret:
		if c.Priv != PrivMachine {
			return ExcIllegalInstruction
		}
		c.Priv = c.CSR.MPP()
		c.CSR.SetMIE(c.CSR.MPIE())
		c.CSR.SetMPIE(true)
		c.CSR.SetMPP(PrivUser)
		c.PCNext = c.CSR.Mepc
		c.branchKind = branchUncond
		return ExcNone
	case priv12Wfi:
		c.Standby = true
		return ExcNone
	}
	return ExcIllegalInstruction
}

func execCSR(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	addr := instr >> 20

	old, ok := c.readCSR(addr)
	if !ok {
		return ExcIllegalInstruction
	}

	if f.funct3 == 0 || f.funct3 == 4 {
		return ExcIllegalInstruction
	}

	useImm := f.funct3 >= 5
	var operand uint32
	if useImm {
		operand = f.rs1 // zimm, not a register number here
	} else {
		operand = c.reg(f.rs1)
	}

	// CSRRS/CSRRC(I) with a zero operand are pure reads that must not
	// perform the write side effect (RISC-V unprivileged spec section
	// 9, csrrs/csrrc "shall not write").
	writesCSR := true
	switch f.funct3 {
	case 2, 3, 6, 7:
		writesCSR = operand != 0
	}

	if writesCSR {
		var next uint32
		switch f.funct3 {
		case 1, 5: // csrrw/csrrwi
			next = operand
		case 2, 6: // csrrs/csrrsi
			next = old | operand
		case 3, 7: // csrrc/csrrci
			next = old &^ operand
		}
		if !c.writeCSR(addr, next) {
			return ExcIllegalInstruction
		}
	}

	c.setReg(f.rd, old)
	return ExcNone
}
