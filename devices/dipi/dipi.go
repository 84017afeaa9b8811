/*
 * msim - inter-processor interrupt controller
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
 * No original_source file models this device either; grounded on
 * spec.md section 4.2's callout ("interprocessor interrupt
 * controllers") and shaped like dterminal's own doorbell register, one
 * per hart instead of one per device instance.
 */

// Package dipi implements a doorbell-per-hart interprocessor interrupt
// controller: one 4-byte register per hart at base+4*hartID. A nonzero
// write latches a pending interrupt for that hart; a zero write (or a
// read, which acks) clears it. Used for the hart-to-hart SC/AMO
// rendezvous spec.md section 4.9 describes and for software-triggered
// interrupts generally.
package dipi

import (
	"fmt"
	"strconv"

	"github.com/rcornwell/msim/internal/command"
	"github.com/rcornwell/msim/internal/device"
)

const defaultHarts = 8

// Controller is the doorbell register file.
type Controller struct {
	device.BaseDevice

	pending []bool
}

func init() {
	command.RegisterDeviceType("dipi", New)
}

// New constructs a Controller for `add dipi <name> <base> [nharts]`.
func New(name string, base uint32, args []string) (device.Device, error) {
	if base%4 != 0 {
		return nil, fmt.Errorf("dipi: address %#x must be on a 4-byte boundary", base)
	}
	n := defaultHarts
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("dipi: invalid hart count %q", args[0])
		}
		n = v
	}
	return &Controller{
		BaseDevice: device.BaseDevice{DevName: name, DevBase: base, DevSize: uint32(4 * n)},
		pending:    make([]bool, n),
	}, nil
}

// Read32 acks (clears) the addressed hart's doorbell and reports
// whether it was pending.
func (c *Controller) Read32(addr uint32) (uint32, bool) {
	idx := (addr - c.Base()) / 4
	if int(idx) >= len(c.pending) {
		return 0, false
	}
	if c.pending[idx] {
		c.pending[idx] = false
		return 1, true
	}
	return 0, true
}

// Write32 sets or clears the addressed hart's doorbell: any nonzero
// value latches it pending, zero clears it outright.
func (c *Controller) Write32(addr uint32, val uint32) bool {
	idx := (addr - c.Base()) / 4
	if int(idx) >= len(c.pending) {
		return false
	}
	c.pending[idx] = val != 0
	return true
}

// PendingIRQ implements device.IRQSource.
func (c *Controller) PendingIRQ(hart int) bool {
	if hart < 0 || hart >= len(c.pending) {
		return false
	}
	return c.pending[hart]
}

func (c *Controller) Info() string {
	return fmt.Sprintf("address:%#08x harts:%d", c.Base(), len(c.pending))
}

func (c *Controller) Stat() string {
	n := 0
	for _, p := range c.pending {
		if p {
			n++
		}
	}
	return fmt.Sprintf("pending:%d", n)
}
