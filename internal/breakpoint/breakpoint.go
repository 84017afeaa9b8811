/*
 * msim - Breakpoint engine
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

// Package breakpoint implements the PC and memory-access breakpoint sets
// (C8): two sorted-by-address containers. The cores' step loops consult
// the PC set on every fetch. The access set is answered by CheckMem
// (through Machine.CheckMemBreak), which neither core's load/store path
// calls, so memory-access breakpoints do not stop execution.
package breakpoint

import "sort"

// Access is the kind of memory access a breakpoint watches for.
type Access int

const (
	Read Access = 1 << iota
	Write
)

const ReadWrite = Read | Write

// Kind distinguishes breakpoints the interactive debugger owns from ones
// set on behalf of the (out-of-scope) remote GDB stub.
type Kind int

const (
	Simulator Kind = iota
	Debugger
)

// PCBreak is a breakpoint on instruction fetch at a fixed address.
type PCBreak struct {
	Addr  uint64
	Hits  uint64 // number of times the breakpoint has fired
	Limit uint64 // optional hit-count before it actually stops; 0 = always
}

// MemBreak is a breakpoint on a physical address range for a given access
// kind.
type MemBreak struct {
	Start  uint64
	End    uint64 // exclusive
	Access Access
	Kind   Kind
}

func (b MemBreak) covers(addr uint64) bool {
	return addr >= b.Start && addr < b.End
}

// Set holds the PC and access breakpoint containers, kept sorted by
// address so lookups can short-circuit once the address space is passed.
type Set struct {
	pc  []*PCBreak
	mem []*MemBreak
}

// New creates an empty breakpoint set.
func New() *Set {
	return &Set{}
}

// AddPC installs a PC breakpoint. addr is deduplicated.
func (s *Set) AddPC(addr uint64) *PCBreak {
	for _, b := range s.pc {
		if b.Addr == addr {
			return b
		}
	}
	b := &PCBreak{Addr: addr}
	s.pc = append(s.pc, b)
	sort.Slice(s.pc, func(i, j int) bool { return s.pc[i].Addr < s.pc[j].Addr })
	return b
}

// RemovePC removes the PC breakpoint at addr, if any.
func (s *Set) RemovePC(addr uint64) bool {
	for i, b := range s.pc {
		if b.Addr == addr {
			s.pc = append(s.pc[:i], s.pc[i+1:]...)
			return true
		}
	}
	return false
}

// CheckPC reports whether a fetch at addr should stop execution. It bumps
// the hit counter on every match and fires once Hits reaches Limit.
func (s *Set) CheckPC(addr uint64) *PCBreak {
	// binary-search-friendly since s.pc is kept sorted, but the set is
	// small in practice (spec.md doesn't bound it) so a linear scan is
	// simplest and matches the teacher's own small fixed-size lists.
	for _, b := range s.pc {
		if b.Addr == addr {
			b.Hits++
			if b.Limit != 0 && b.Hits < b.Limit {
				return nil
			}
			return b
		}
	}
	return nil
}

// AddMem installs a memory-access breakpoint covering [start, end) for the
// given access kind and owner.
func (s *Set) AddMem(start, end uint64, access Access, kind Kind) *MemBreak {
	b := &MemBreak{Start: start, End: end, Access: access, Kind: kind}
	s.mem = append(s.mem, b)
	sort.Slice(s.mem, func(i, j int) bool { return s.mem[i].Start < s.mem[j].Start })
	return b
}

// RemoveMem removes every memory breakpoint whose range starts at addr.
func (s *Set) RemoveMem(addr uint64) bool {
	removed := false
	out := s.mem[:0]
	for _, b := range s.mem {
		if b.Start == addr {
			removed = true
			continue
		}
		out = append(out, b)
	}
	s.mem = out
	return removed
}

// CheckMem returns every breakpoint that covers addr for the given access
// kind.
func (s *Set) CheckMem(addr uint64, access Access) []*MemBreak {
	var hit []*MemBreak
	for _, b := range s.mem {
		if b.Start > addr {
			break
		}
		if b.covers(addr) && (b.Access&access) != 0 {
			hit = append(hit, b)
		}
	}
	return hit
}

// PCList and MemList return the current breakpoints for the dumpbreak
// command.
func (s *Set) PCList() []*PCBreak   { return s.pc }
func (s *Set) MemList() []*MemBreak { return s.mem }
