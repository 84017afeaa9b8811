/*
 * msim - RV32A atomics: LR/SC and AMO* (C9 reservation set)
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
	amoLR      = 0b00010
	amoSC      = 0b00011
	amoSwap    = 0b00001
	amoAdd     = 0b00000
	amoXor     = 0b00100
	amoAnd     = 0b01100
	amoOr      = 0b01000
	amoMin     = 0b10000
	amoMax     = 0b10100
	amoMinu    = 0b11000
	amoMaxu    = 0b11100
)

// execAtomic implements the RV32A word-width subset. Each hart holds one
// reservation (an aligned-down physical address); any hart's store to
// that word clears it.
// Only funct3==2 (word) operations are defined; msim has no 64-bit XLEN.
func execAtomic(c *CPU, bus Bus, instr uint32) Exception {
	f := decodeFields(instr)
	if f.funct3 != 2 {
		return ExcIllegalInstruction
	}
	funct5 := f.funct7 >> 2
	addr := c.reg(f.rs1)
	if addr%4 != 0 {
		c.CSR.TvalNext = addr
		return ExcStoreAddrMisaligned
	}

	switch funct5 {
	case amoLR:
		return c.execLR(bus, f, addr)
	case amoSC:
		return c.execSC(bus, f, addr)
	default:
		return c.execAMO(bus, f, addr, funct5)
	}
}

func (c *CPU) execLR(bus Bus, f fields, addr uint32) Exception {
	phys, ex := c.Translate(bus, addr, IntentLoad, false)
	if ex != ExcNone {
		c.CSR.TvalNext = addr
		return ex
	}
	v := bus.Read32(phys, true)
	c.reservedAddr = uint32(phys) &^ 3
	c.reservedValid = true
	c.setReg(f.rd, v)
	return ExcNone
}

// execSC implements store-conditional: it only writes, and only clears
// every hart's reservation, when this hart's reservation is both valid
// and at addr (spec.md section 4.9, "store-conditional success requires
// addr to equal this hart's held reservation").
func (c *CPU) execSC(bus Bus, f fields, addr uint32) Exception {
	phys, ex := c.Translate(bus, addr, IntentStore, true)
	if ex != ExcNone {
		c.CSR.TvalNext = addr
		return ex
	}
	aligned := uint32(phys) &^ 3
	if !c.reservedValid || c.reservedAddr != aligned {
		c.setReg(f.rd, 1)
		return ExcNone
	}
	bus.Write32(phys, c.reg(f.rs2), true)
	c.reservedValid = false
	bus.InvalidateReservations(c.HartID, aligned)
	c.setReg(f.rd, 0)
	return ExcNone
}

func (c *CPU) execAMO(bus Bus, f fields, addr uint32, funct5 uint32) Exception {
	phys, ex := c.Translate(bus, addr, IntentStore, true)
	if ex != ExcNone {
		c.CSR.TvalNext = addr
		return ex
	}
	old := bus.Read32(phys, true)
	rhs := c.reg(f.rs2)
	var result uint32
	switch funct5 {
	case amoSwap:
		result = rhs
	case amoAdd:
		result = old + rhs
	case amoXor:
		result = old ^ rhs
	case amoAnd:
		result = old & rhs
	case amoOr:
		result = old | rhs
	case amoMin:
		if int32(old) < int32(rhs) {
			result = old
		} else {
			result = rhs
		}
	case amoMax:
		if int32(old) > int32(rhs) {
			result = old
		} else {
			result = rhs
		}
	case amoMinu:
		if old < rhs {
			result = old
		} else {
			result = rhs
		}
	case amoMaxu:
		if old > rhs {
			result = old
		} else {
			result = rhs
		}
	default:
		return ExcIllegalInstruction
	}
	bus.Write32(phys, result, true)
	bus.InvalidateReservations(c.HartID, uint32(phys)&^3)
	c.setReg(f.rd, old)
	return ExcNone
}
