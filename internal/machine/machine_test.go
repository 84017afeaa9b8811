/*
 * msim - machine wiring tests
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

package machine

import (
	"testing"

	"github.com/rcornwell/msim/internal/breakpoint"
	"github.com/rcornwell/msim/internal/device"
	"github.com/rcornwell/msim/internal/memory"
)

type stubDevice struct {
	device.BaseDevice
	reg uint32
}

func (d *stubDevice) Read32(addr uint32) (uint32, bool)  { return d.reg, true }
func (d *stubDevice) Write32(addr uint32, v uint32) bool { d.reg = v; return true }

func TestMemoryRoundTripThroughMachine(t *testing.T) {
	m := New(1, nil)
	m.Mem.MapRegion(0x1000, memory.FrameSize, memory.RWM)

	if !m.Write32(0x1000, 0xcafef00d, true) {
		t.Fatal("write should have landed in mapped RWM")
	}
	if got := m.Read32(0x1000, true); got != 0xcafef00d {
		t.Fatalf("read back %#x, want 0xcafef00d", got)
	}
}

func TestDeviceWinsOverMemory(t *testing.T) {
	m := New(1, nil)
	m.Mem.MapRegion(0x2000, memory.FrameSize, memory.RWM)
	dev := &stubDevice{BaseDevice: device.BaseDevice{DevName: "stub", DevBase: 0x2000, DevSize: 4}}
	if err := m.Devices.Add(dev); err != nil {
		t.Fatal(err)
	}

	m.Write32(0x2000, 42, true)
	if dev.reg != 42 {
		t.Fatalf("device register = %d, want 42 (device should win over memory)", dev.reg)
	}
	if got := m.Read32(0x2000, true); got != 42 {
		t.Fatalf("read = %d, want 42", got)
	}
}

func TestDecodeCacheSharedAcrossFetches(t *testing.T) {
	m := New(1, nil)
	m.Mem.MapRegion(0, memory.FrameSize, memory.RWM)
	m.Write32(0, 0x00000013, true) // nop (addi x0, x0, 0)

	if _, ok := m.FetchHandler(0); !ok {
		t.Fatal("expected a cached handler for a mapped frame")
	}
	if m.Decode.Len() != 1 {
		t.Fatalf("decode cache has %d entries, want 1", m.Decode.Len())
	}

	m.Write32(0, 0x00100013, true) // addi x0, x0, 1 -- still decodes to x0 target
	if _, ok := m.FetchHandler(0); !ok {
		t.Fatal("expected a handler after the frame was invalidated and repopulated")
	}
}

func TestPCBreakpointObservedThroughMachine(t *testing.T) {
	m := New(1, nil)
	m.Breaks.AddPC(0x4000)
	if !m.CheckPCBreak(0x4000) {
		t.Fatal("expected breakpoint hit at 0x4000")
	}
	if m.CheckPCBreak(0x4004) {
		t.Fatal("did not expect a breakpoint hit at 0x4004")
	}
}

func TestMemBreakpointAccessKind(t *testing.T) {
	m := New(1, nil)
	m.Breaks.AddMem(0x5000, 0x5004, breakpoint.Write, breakpoint.Debugger)
	if m.CheckMemBreak(0x5000, false) {
		t.Fatal("read should not trip a write-only breakpoint")
	}
	if !m.CheckMemBreak(0x5000, true) {
		t.Fatal("write should trip a write-only breakpoint")
	}
}

func TestStepHartExecutesMappedProgram(t *testing.T) {
	m := New(1, nil)
	const base = 0x80000000
	m.Mem.MapRegion(base, memory.FrameSize, memory.RWM)
	m.Write32(base, 0x00500093, true) // addi x1, x0, 5

	res := m.StepHart(0)
	if res.Trapped {
		t.Fatalf("unexpected trap: %v", res.Cause)
	}
	if m.Harts[0].Regs[1] != 5 {
		t.Fatalf("x1 = %d, want 5", m.Harts[0].Regs[1])
	}
}
