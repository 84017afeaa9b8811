/*
 * msim - Device registry
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

// Package device implements the memory-mapped device registry (C2): a
// name-keyed, insertion-ordered list of attached peripherals, dispatching
// MMIO reads/writes to the first device whose address range covers the
// target, and ticking every device's step/step4 hooks once per processor
// step.
package device

import "fmt"

// Device is the capability vector a peripheral implements. Not every
// device implements every capability: embedding BaseDevice supplies no-op
// defaults for the ones a device type does not support, mirroring the
// Init/Done/Read/Write/
// Step/Step4/Info/Stat capability vector of spec.md section 3.
type Device interface {
	Name() string
	Base() uint32
	Size() uint32

	Init(args []string) error
	Done()

	Read32(addr uint32) (uint32, bool)
	Read16(addr uint32) (uint16, bool)
	Read8(addr uint32) (uint8, bool)
	Write32(addr uint32, val uint32) bool
	Write16(addr uint32, val uint16) bool
	Write8(addr uint32, val uint8) bool

	Step()
	Step4()

	Info() string
	Stat() string
}

// BaseDevice supplies default no-op implementations of every Device
// method, so a concrete device only needs to override the capabilities
// it actually has (the capability vector of spec.md section 3).
type BaseDevice struct {
	DevName string
	DevBase uint32
	DevSize uint32
}

func (b *BaseDevice) Name() string { return b.DevName }
func (b *BaseDevice) Base() uint32 { return b.DevBase }
func (b *BaseDevice) Size() uint32 { return b.DevSize }

func (b *BaseDevice) Init([]string) error                { return nil }
func (b *BaseDevice) Done()                               {}
func (b *BaseDevice) Read32(uint32) (uint32, bool)        { return 0, false }
func (b *BaseDevice) Read16(uint32) (uint16, bool)        { return 0, false }
func (b *BaseDevice) Read8(uint32) (uint8, bool)          { return 0, false }
func (b *BaseDevice) Write32(uint32, uint32) bool         { return false }
func (b *BaseDevice) Write16(uint32, uint16) bool         { return false }
func (b *BaseDevice) Write8(uint32, uint8) bool           { return false }
func (b *BaseDevice) Step()                               {}
func (b *BaseDevice) Step4()                               {}
func (b *BaseDevice) Info() string                         { return "" }
func (b *BaseDevice) Stat() string                         { return "" }

// MemoryBus is the slice of physical-memory access a device needs for
// a DMA-style transfer (ddisk's sector read/write), kept narrow so
// devices/ never has to import internal/memory directly.
type MemoryBus interface {
	Read8(phys uint64, noisy bool) uint8
	Write8(phys uint64, v uint8, noisy bool) bool
}

// MemoryBinder is implemented by a device that needs direct physical
// memory access beyond its own MMIO window. The caller that attaches
// the device (internal/command's `add`, which already holds the
// Machine) calls BindMemory once right after Add -- bound late because
// a device is constructed by its type's registered constructor before
// the Machine that will own it is in scope.
type MemoryBinder interface {
	BindMemory(mem MemoryBus)
}

// IRQSource is the optional capability a device implements to assert an
// external interrupt line toward a specific hart (spec.md section 4.2:
// "raises external interrupt on input availability"; also the
// hart-to-hart doorbell an IPI controller drives). A device with
// nothing to signal simply doesn't implement this -- most devices
// never do.
type IRQSource interface {
	PendingIRQ(hart int) bool
}

// contains reports whether addr falls in [base, base+size).
func contains(base, size, addr uint32) bool {
	return addr >= base && addr < base+size
}

// Registry keeps attached devices in insertion order and dispatches MMIO
// accesses to the first one whose range covers the address (spec.md
// section 4.2: "devices may overlap physical memory; device wins").
type Registry struct {
	order []Device
	byName map[string]Device
	steps  uint64
}

// New creates an empty device registry.
func New() *Registry {
	return &Registry{byName: make(map[string]Device)}
}

// Add attaches dev under its own name, rejecting a second device
// registered under a name already in use.
func (r *Registry) Add(dev Device) error {
	name := dev.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("device %q already added", name)
	}
	r.byName[name] = dev
	r.order = append(r.order, dev)
	return nil
}

// Remove detaches and tears down (via Done) the named device.
func (r *Registry) Remove(name string) error {
	dev, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("no such device: %q", name)
	}
	dev.Done()
	delete(r.byName, name)
	for i, d := range r.order {
		if d == dev {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ByName returns the device registered under name, if any.
func (r *Registry) ByName(name string) (Device, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns devices in insertion order.
func (r *Registry) All() []Device {
	return r.order
}

// DispatchRead32 finds the first device (insertion order) whose range
// covers addr and returns its read, or (0, false) if none claims it.
func (r *Registry) DispatchRead32(addr uint32) (uint32, bool) {
	for _, d := range r.order {
		if contains(d.Base(), d.Size(), addr) {
			return d.Read32(addr)
		}
	}
	return 0, false
}

func (r *Registry) DispatchRead16(addr uint32) (uint16, bool) {
	for _, d := range r.order {
		if contains(d.Base(), d.Size(), addr) {
			return d.Read16(addr)
		}
	}
	return 0, false
}

func (r *Registry) DispatchRead8(addr uint32) (uint8, bool) {
	for _, d := range r.order {
		if contains(d.Base(), d.Size(), addr) {
			return d.Read8(addr)
		}
	}
	return 0, false
}

// DispatchWrite32 finds the first device whose range covers addr and
// delivers the write. Returns false if no device claims the address.
func (r *Registry) DispatchWrite32(addr uint32, val uint32) bool {
	for _, d := range r.order {
		if contains(d.Base(), d.Size(), addr) {
			return d.Write32(addr, val)
		}
	}
	return false
}

func (r *Registry) DispatchWrite16(addr uint32, val uint16) bool {
	for _, d := range r.order {
		if contains(d.Base(), d.Size(), addr) {
			return d.Write16(addr, val)
		}
	}
	return false
}

func (r *Registry) DispatchWrite8(addr uint32, val uint8) bool {
	for _, d := range r.order {
		if contains(d.Base(), d.Size(), addr) {
			return d.Write8(addr, val)
		}
	}
	return false
}

// IRQPending reports whether any attached device currently asserts an
// external interrupt line toward hart.
func (r *Registry) IRQPending(hart int) bool {
	for _, d := range r.order {
		if s, ok := d.(IRQSource); ok && s.PendingIRQ(hart) {
			return true
		}
	}
	return false
}

// Step fires every device's per-cycle Step hook, and every fourth call
// additionally fires Step4 (spec.md section 4.2: coarse-grained I/O
// flushes, e.g. the printer's batched-output flush).
func (r *Registry) Step() {
	r.steps++
	for _, d := range r.order {
		d.Step()
	}
	if r.steps%4 == 0 {
		for _, d := range r.order {
			d.Step4()
		}
	}
}

// Teardown calls Done on every device, in insertion order.
func (r *Registry) Teardown() {
	for _, d := range r.order {
		d.Done()
	}
	r.order = nil
	r.byName = make(map[string]Device)
}
