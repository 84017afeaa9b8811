/*
 * msim - file-backed sector disk device
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
 * No original_source file models this device -- the pack retrieved for
 * this spec carries no disk controller, only the printer. Grounded
 * instead on spec.md section 4.2's register list ("sector, buffer
 * address, command (read/write/status)") and on the teacher's
 * model1403/model1052 device shape (a data file opened at attach time,
 * a synchronous transfer triggered by a command write).
 */

// Package ddisk implements a minimal sector disk: three 4-byte
// registers -- sector number, DMA buffer physical address, and a
// command/status register whose write triggers an immediate (no
// Step-based latency) whole-sector transfer between the backing file
// and physical memory.
package ddisk

import (
	"fmt"
	"os"

	"github.com/rcornwell/msim/internal/command"
	"github.com/rcornwell/msim/internal/device"
)

const (
	regSector = 0 // sector number
	regBuffer = 4 // physical address of the in-memory transfer buffer
	regCmd    = 8 // write: command; read: status
	regSize   = 12

	sectorBytes = 512

	cmdNone  = 0
	cmdRead  = 1 // sector -> buffer
	cmdWrite = 2 // buffer -> sector

	statusBusy  = 1 << 0 // never observed set: transfers complete synchronously
	statusError = 1 << 1
)

// Disk is a file-backed sector store addressed through three registers.
type Disk struct {
	device.BaseDevice

	file *os.File
	mem  device.MemoryBus

	sector uint32
	buffer uint32
	status uint32
}

func init() {
	command.RegisterDeviceType("ddisk", New)
}

// New constructs a Disk for `add ddisk <name> <base> <file>`, opening
// (and creating, if absent) the backing file.
func New(name string, base uint32, args []string) (device.Device, error) {
	if base%4 != 0 {
		return nil, fmt.Errorf("ddisk: address %#x must be on a 4-byte boundary", base)
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("ddisk: usage: add ddisk <name> <base> <file>")
	}
	f, err := os.OpenFile(args[0], os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ddisk: %w", err)
	}
	return &Disk{
		BaseDevice: device.BaseDevice{DevName: name, DevBase: base, DevSize: regSize},
		file:       f,
	}, nil
}

// BindMemory implements device.MemoryBinder: the disk needs direct
// physical-memory access for its DMA transfers, beyond its own MMIO
// register window.
func (d *Disk) BindMemory(mem device.MemoryBus) {
	d.mem = mem
}

func (d *Disk) Read32(addr uint32) (uint32, bool) {
	switch addr - d.Base() {
	case regSector:
		return d.sector, true
	case regBuffer:
		return d.buffer, true
	case regCmd:
		return d.status, true
	default:
		return 0, false
	}
}

func (d *Disk) Write32(addr uint32, val uint32) bool {
	switch addr - d.Base() {
	case regSector:
		d.sector = val
		return true
	case regBuffer:
		d.buffer = val
		return true
	case regCmd:
		d.status = d.transfer(val)
		return true
	default:
		return false
	}
}

// transfer runs cmd synchronously against the current sector/buffer
// registers and reports the resulting status register value.
func (d *Disk) transfer(cmd uint32) uint32 {
	switch cmd {
	case cmdNone:
		return 0
	case cmdRead:
		return d.doRead()
	case cmdWrite:
		return d.doWrite()
	default:
		return statusError
	}
}

func (d *Disk) doRead() uint32 {
	buf := make([]byte, sectorBytes)
	n, err := d.file.ReadAt(buf, int64(d.sector)*sectorBytes)
	if err != nil && n == 0 {
		// A short or missing sector reads as zeros rather than faulting:
		// growing the backing file lazily on first write is normal use.
		for i := range buf {
			buf[i] = 0
		}
	}
	for i, b := range buf {
		if !d.mem.Write8(uint64(d.buffer)+uint64(i), b, false) {
			return statusError
		}
	}
	return 0
}

func (d *Disk) doWrite() uint32 {
	buf := make([]byte, sectorBytes)
	for i := range buf {
		buf[i] = d.mem.Read8(uint64(d.buffer)+uint64(i), false)
	}
	if _, err := d.file.WriteAt(buf, int64(d.sector)*sectorBytes); err != nil {
		return statusError
	}
	return 0
}

func (d *Disk) Done() {
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
}

func (d *Disk) Info() string {
	return fmt.Sprintf("address:%#08x file:%s", d.Base(), d.file.Name())
}

func (d *Disk) Stat() string {
	return fmt.Sprintf("sector:%d status:%#x", d.sector, d.status)
}
