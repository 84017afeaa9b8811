/*
 * msim - Physical memory
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

// Package memory implements the frame-backed physical address space (C1).
//
// Physical memory is byte-addressable, little-endian, and organized into
// fixed 4096-byte frames. A frame carries a decode-valid bit that the
// decode cache (package decode) relies on: any write that touches a frame
// clears that bit, so stale decoded instructions are never executed.
package memory

import (
	"log/slog"
)

const (
	// FrameSize is the size in bytes of one physical memory frame.
	FrameSize = 4096
	// FrameMask selects the offset within a frame.
	FrameMask = FrameSize - 1
	// DefaultUnmapped is returned for reads that hit unmapped or EXC memory.
	DefaultUnmapped uint64 = 0xffffffff
)

// Kind classifies how a physical region behaves.
type Kind int

const (
	RWM Kind = iota // normal read/write memory
	ROM             // read-only memory; writes are ignored
	EXC             // accessing this region raises an access exception
)

// Frame is one fixed-size block of physical memory.
type Frame struct {
	Base        uint64
	bytes       [FrameSize]byte
	kind        Kind
	decodeValid bool
}

// Valid reports whether the frame's decode cache entry is coherent with
// its current bytes (invariant I1 of spec.md section 3).
func (f *Frame) Valid() bool { return f.decodeValid }

// SetValid is called by the decode cache once it has (re)populated its
// entry for this frame.
func (f *Frame) SetValid(v bool) { f.decodeValid = v }

// Memory is the machine's physical address space: a sparse map of frames.
// It owns no locks -- the simulator's scheduling model is single-threaded
// cooperative (spec.md section 5) -- and notifies an optional invalidation
// callback whenever a write touches a frame, so the decode cache can react.
type Memory struct {
	frames  map[uint64]*Frame
	warned  map[uint64]bool
	log     *slog.Logger
	onWrite func(frameBase uint64)
}

// New creates an empty physical address space.
func New(log *slog.Logger) *Memory {
	if log == nil {
		log = slog.Default()
	}
	return &Memory{
		frames: make(map[uint64]*Frame),
		warned: make(map[uint64]bool),
		log:    log,
	}
}

// OnWrite registers the callback invoked with a frame's base address every
// time a write lands in that frame. Used to wire the decode cache's
// invalidation (spec.md section 4.3); LL/SC reservations are cleared by
// the cores through their Bus, not through this callback.
func (m *Memory) OnWrite(cb func(frameBase uint64)) {
	m.onWrite = cb
}

func frameBase(phys uint64) uint64 { return phys &^ uint64(FrameMask) }

// MapRegion creates size bytes of frames of the given kind starting at
// phys, rounded to frame boundaries.
func (m *Memory) MapRegion(phys uint64, size uint64, kind Kind) {
	start := frameBase(phys)
	end := frameBase(phys+size-1) + FrameSize
	for base := start; base < end; base += FrameSize {
		if _, ok := m.frames[base]; ok {
			continue
		}
		m.frames[base] = &Frame{Base: base, kind: kind}
	}
}

// UnmapRegion removes frames covering [phys, phys+size).
func (m *Memory) UnmapRegion(phys uint64, size uint64) {
	start := frameBase(phys)
	end := frameBase(phys+size-1) + FrameSize
	for base := start; base < end; base += FrameSize {
		delete(m.frames, base)
	}
}

// FindFrame returns the frame containing phys, or nil if unmapped.
func (m *Memory) FindFrame(phys uint64) *Frame {
	return m.frames[frameBase(phys)]
}

func (m *Memory) warnUnmapped(phys uint64) {
	if m.warned[phys] {
		return
	}
	m.warned[phys] = true
	m.log.Warn("access to unmapped physical memory", "addr", phys)
}

// read reads n bytes (n in {1,2,4,8}) starting at phys. Accesses that
// straddle a frame boundary are split into two sub-accesses, matching
// spec.md section 4.1 ("Multi-byte accesses that straddle frame boundaries
// are split").
func (m *Memory) read(phys uint64, n int, noisy bool) uint64 {
	var buf [8]byte
	for i := 0; i < n; i++ {
		addr := phys + uint64(i)
		frame := m.FindFrame(addr)
		if frame == nil {
			if noisy {
				m.warnUnmapped(addr)
			}
			buf[i] = byte(DefaultUnmapped >> (8 * uint(i%4)))
			continue
		}
		if frame.kind == EXC {
			if noisy {
				m.log.Warn("read from EXC region", "addr", addr)
			}
			buf[i] = byte(DefaultUnmapped >> (8 * uint(i%4)))
			continue
		}
		buf[i] = frame.bytes[addr&FrameMask]
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = (v << 8) | uint64(buf[i])
	}
	return v
}

// Read8/16/32/64 read little-endian values of the given width.
func (m *Memory) Read8(phys uint64, noisy bool) uint8   { return uint8(m.read(phys, 1, noisy)) }
func (m *Memory) Read16(phys uint64, noisy bool) uint16 { return uint16(m.read(phys, 2, noisy)) }
func (m *Memory) Read32(phys uint64, noisy bool) uint32 { return uint32(m.read(phys, 4, noisy)) }
func (m *Memory) Read64(phys uint64, noisy bool) uint64 { return m.read(phys, 8, noisy) }

// write writes n bytes of v (little-endian) starting at phys. Returns true
// iff at least one byte was actually written into RWM (i.e. the access
// didn't land entirely in unmapped/ROM/EXC memory). Every frame touched by
// the write has its decode-valid bit cleared and the write callback fired,
// even for a partial straddling write (spec.md section 4.1).
func (m *Memory) write(phys uint64, v uint64, n int, noisy bool) bool {
	didWrite := false
	touched := map[uint64]bool{}
	for i := 0; i < n; i++ {
		addr := phys + uint64(i)
		frame := m.FindFrame(addr)
		b := byte(v >> (8 * uint(i)))
		if frame == nil {
			if noisy {
				m.warnUnmapped(addr)
			}
			continue
		}
		switch frame.kind {
		case ROM:
			// writes to ROM are silently ignored, matching
			// original_source's rv_write_mem* behavior of never
			// raising an access fault on a failed physical write
			// (spec.md section 9, "Open question").
			continue
		case EXC:
			if noisy {
				m.log.Warn("write to EXC region", "addr", addr)
			}
			continue
		}
		frame.bytes[addr&FrameMask] = b
		didWrite = true
		touched[frame.Base] = true
	}
	if didWrite {
		for base := range touched {
			m.frames[base].decodeValid = false
			if m.onWrite != nil {
				m.onWrite(base)
			}
		}
	}
	return didWrite
}

// Write8/16/32 write little-endian values of the given width and report
// whether the write landed in writable memory.
func (m *Memory) Write8(phys uint64, v uint8, noisy bool) bool {
	return m.write(phys, uint64(v), 1, noisy)
}

func (m *Memory) Write16(phys uint64, v uint16, noisy bool) bool {
	return m.write(phys, uint64(v), 2, noisy)
}

func (m *Memory) Write32(phys uint64, v uint32, noisy bool) bool {
	return m.write(phys, uint64(v), 4, noisy)
}
