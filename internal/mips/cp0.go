/*
 * msim - MIPS R4000 CP0 system coprocessor
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

// CP0 register numbers referenced directly by mfc0/mtc0 (spec.md section
// 4.4's CP0 register list).
const (
	cp0Index    = 0
	cp0Random   = 1
	cp0EntryLo0 = 2
	cp0EntryLo1 = 3
	cp0Context  = 4
	cp0PageMask = 5
	cp0Wired    = 6
	cp0BadVAddr = 8
	cp0Count    = 9
	cp0EntryHi  = 10
	cp0Compare  = 11
	cp0Status   = 12
	cp0Cause    = 13
	cp0EPC      = 14
	cp0PRId     = 15
	cp0Config   = 16
)

// Status register bit positions.
const (
	statusIEBit  = 0
	statusEXLBit = 1
	statusERLBit = 2
)

// Cause register fields.
const (
	causeExcCodeShift = 2
	causeExcCodeMask  = 0x1f << causeExcCodeShift
	causeIPShift      = 8
	causeBDBit        = 31
)

// prIDR4000 is the Processor Id value a real R4000 reports.
const prIDR4000 = 0x00000400

// CP0 is the R4000 system coprocessor register file (spec.md section 4.4).
type CP0 struct {
	Index    uint32
	Random   uint32
	EntryLo0 uint32
	EntryLo1 uint32
	Context  uint32
	PageMask uint32
	Wired    uint32
	BadVAddr uint32
	Count    uint32
	EntryHi  uint32
	Compare  uint32
	Status   uint32
	Cause    uint32
	EPC      uint32
	PRId     uint32
	Config   uint32
}

func (c *CP0) reset(hartID uint32) {
	*c = CP0{
		Status: 1 << statusERLBit, // ERL set at reset, per R4000 architecture manual
		PRId:   prIDR4000,
		Random: tlbEntries - 1,
	}
	_ = hartID
}

func (c *CP0) ie() bool  { return c.Status&(1<<statusIEBit) != 0 }
func (c *CP0) exl() bool { return c.Status&(1<<statusEXLBit) != 0 }
func (c *CP0) erl() bool { return c.Status&(1<<statusERLBit) != 0 }

// interruptsEnabled reports whether a pending hardware interrupt should
// actually be taken right now.
func (c *CP0) interruptsEnabled() bool {
	return c.ie() && !c.exl() && !c.erl()
}

func (c *CP0) setExcCode(code uint32) {
	c.Cause = (c.Cause &^ causeExcCodeMask) | ((code << causeExcCodeShift) & causeExcCodeMask)
}

func (c *CP0) setBD(v bool) {
	if v {
		c.Cause |= 1 << causeBDBit
	} else {
		c.Cause &^= 1 << causeBDBit
	}
}

// pendingIP reports the IP7..IP0 bits of Cause currently set, for the
// timer-interrupt wiring between Count/Compare and IP7 (software timer
// interrupt, spec.md section 4.5).
func (c *CP0) pendingIP() uint32 {
	return (c.Cause >> causeIPShift) & 0xff
}

func (c *CP0) setIP(bit uint, v bool) {
	mask := uint32(1) << (causeIPShift + bit)
	if v {
		c.Cause |= mask
	} else {
		c.Cause &^= mask
	}
}
