/*
 * msim - MIPS R4000 virtual memory access helpers
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

// readWord/readHalf/readByte/write* implement the R4000 load/store
// exception priority: translation fault before alignment fault (mirrored
// from internal/riscv's ReadMem32, which states the same priority from
// original_source's rv_read_mem32).
func (c *CPU) readWord(bus Bus, virt uint32) (uint32, Exception) {
	phys, ex, ok := c.Translate(virt, IntentLoad)
	if !ok {
		return 0, ex
	}
	if virt%4 != 0 {
		return 0, ExcAdEL
	}
	return bus.Read32(uint64(phys), true), ExcNone
}

func (c *CPU) readHalf(bus Bus, virt uint32) (uint16, Exception) {
	phys, ex, ok := c.Translate(virt, IntentLoad)
	if !ok {
		return 0, ex
	}
	if virt%2 != 0 {
		return 0, ExcAdEL
	}
	return bus.Read16(uint64(phys), true), ExcNone
}

func (c *CPU) readByte(bus Bus, virt uint32) (uint8, Exception) {
	phys, ex, ok := c.Translate(virt, IntentLoad)
	if !ok {
		return 0, ex
	}
	return bus.Read8(uint64(phys), true), ExcNone
}

func (c *CPU) writeWord(bus Bus, virt uint32, v uint32) Exception {
	phys, ex, ok := c.Translate(virt, IntentStore)
	if !ok {
		return ex
	}
	if virt%4 != 0 {
		return ExcAdES
	}
	bus.Write32(uint64(phys), v, true)
	c.invalidateOnStore(bus, phys)
	return ExcNone
}

func (c *CPU) writeHalf(bus Bus, virt uint32, v uint16) Exception {
	phys, ex, ok := c.Translate(virt, IntentStore)
	if !ok {
		return ex
	}
	if virt%2 != 0 {
		return ExcAdES
	}
	bus.Write16(uint64(phys), v, true)
	c.invalidateOnStore(bus, phys)
	return ExcNone
}

func (c *CPU) writeByte(bus Bus, virt uint32, v uint8) Exception {
	phys, ex, ok := c.Translate(virt, IntentStore)
	if !ok {
		return ex
	}
	bus.Write8(uint64(phys), v, true)
	c.invalidateOnStore(bus, phys)
	return ExcNone
}

func (c *CPU) invalidateOnStore(bus Bus, phys uint32) {
	bus.InvalidateReservations(c.HartID, phys&^3)
}
