/*
 * msim - Decode cache
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

// Package decode implements the per-frame decoded-instruction cache (C3).
//
// Grounded on original_source's riscv_rv32ima/cpu.c cache_item_t list,
// redesigned per spec.md section 9 ("Cache/frame back-reference"): entries
// live in a hash map keyed by frame base address rather than a linked list
// with a raw frame->entry back-pointer, so invalidation stays O(1) without
// any cyclic ownership.
package decode

import "github.com/rcornwell/msim/internal/memory"

const instrSize = 4
const slotsPerFrame = memory.FrameSize / instrSize

// Handler is a decoded instruction: a pure function from the architectural
// state (opaque to this package) to whatever the caller's instruction
// handler signature is. Handlers are stored as `any` so this package has
// no dependency on a specific ISA; callers type-assert on read.
type Handler any

// entry holds the decoded handler for every aligned instruction word in
// one frame.
type entry struct {
	base  uint64
	slots [slotsPerFrame]Handler
}

// Decoder decodes a single instruction word into a Handler. Supplied by
// the ISA package (internal/riscv or internal/mips).
type Decoder func(word uint32) Handler

// Cache is the decode cache: one entry per frame, invalidated through the
// physical memory's write callback.
type Cache struct {
	mem     *memory.Memory
	decode  Decoder
	entries map[uint64]*entry
}

// New creates a decode cache bound to mem, using decode to turn raw
// instruction words into handlers. It registers no callback itself: any
// write to mem clears the owning frame's decode-valid bit (invariant I2 of
// spec.md section 3), and the caller may wire Invalidate to mem.OnWrite.
// The entry itself is left populated
// so a later re-fetch only needs to re-decode, not reallocate (spec.md
// section 4.3: "the entry is not freed; amortizes churn").
func New(mem *memory.Memory, decode Decoder) *Cache {
	c := &Cache{mem: mem, decode: decode, entries: make(map[uint64]*entry)}
	return c
}

func frameBase(phys uint64) uint64 { return phys &^ uint64(memory.FrameMask) }

func (c *Cache) populate(base uint64) *entry {
	e := c.entries[base]
	if e == nil {
		e = &entry{base: base}
		c.entries[base] = e
	}
	for i := 0; i < slotsPerFrame; i++ {
		word := c.mem.Read32(base+uint64(i*instrSize), false)
		e.slots[i] = c.decode(word)
	}
	return e
}

// Fetch returns the decoded handler for the instruction word at phys,
// (re)decoding the owning frame first if its decode-valid bit is clear.
// Returns (nil, false) if phys is not backed by a physical frame.
func (c *Cache) Fetch(phys uint64) (Handler, bool) {
	frame := c.mem.FindFrame(phys)
	if frame == nil {
		return nil, false
	}
	base := frameBase(phys)
	e := c.entries[base]
	if e == nil || !frame.Valid() {
		e = c.populate(base)
		frame.SetValid(true)
	}
	slot := (phys & memory.FrameMask) / instrSize
	return e.slots[slot], true
}

// Invalidate is the write-callback hook for the frame at frameBaseAddr.
// It changes nothing: the cached entry is kept (not freed) so population
// on the next Fetch is cheap, and memory.Memory has already cleared the
// frame's decode-valid bit; this is called from memory.Memory's write
// callback.
func (c *Cache) Invalidate(frameBaseAddr uint64) {
	// Nothing to do here: the Memory.Frame's decode-valid bit is the
	// single source of truth and is already cleared by the caller
	// (memory.Memory.write). Fetch re-populates lazily.
}

// Teardown frees every cached entry.
func (c *Cache) Teardown() {
	c.entries = make(map[uint64]*entry)
}

// Len reports the number of distinct frames with a cached entry; used by
// tests.
func (c *Cache) Len() int {
	return len(c.entries)
}
