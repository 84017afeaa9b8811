/*
 * msim - keyboard/display terminal device
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

// Package dterminal implements a simple keyboard/display console: a
// status register (bit 0 set while input is pending) and a data
// register (read drains the next queued input byte, write prints a
// character to the display). Modeled on the teacher's model1052
// console -- a small pending-input buffer fed from outside the device,
// rather than the device reading a file descriptor itself -- adapted
// from its telnet-fed queue to the debugger's `set <name> type <text>`
// command (since the REPL's own stdin is owned by liner for command
// entry, not available for raw keystroke capture).
package dterminal

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rcornwell/msim/internal/command"
	"github.com/rcornwell/msim/internal/device"
)

const (
	regData   = 0 // read: next input byte; write: character to display
	regStatus = 4 // bit 0: input ready
	regSize   = 8

	statusReady = 1 << 0
)

// Terminal is a memory-mapped console device.
type Terminal struct {
	device.BaseDevice

	hart int // hart this console's input-ready interrupt targets

	mu    sync.Mutex
	inbuf []byte

	out io.Writer
}

func init() {
	command.RegisterDeviceType("dterminal", New)
}

// New constructs a Terminal for `add dterminal <name> <base> [hart]`,
// defaulting to hart 0 when no target hart is given.
func New(name string, base uint32, args []string) (device.Device, error) {
	if base%4 != 0 {
		return nil, fmt.Errorf("dterminal: address %#x must be on a 4-byte boundary", base)
	}
	hart := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("dterminal: invalid hart %q", args[0])
		}
		hart = n
	}
	return &Terminal{
		BaseDevice: device.BaseDevice{DevName: name, DevBase: base, DevSize: regSize},
		hart:       hart,
		out:        os.Stdout,
	}, nil
}

// Feed queues input bytes supplied from outside the device (the `type`
// sub-command), making them visible to the next read of regData and
// asserting the input-ready interrupt until they are drained.
func (t *Terminal) Feed(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbuf = append(t.inbuf, data...)
}

func (t *Terminal) Read32(addr uint32) (uint32, bool) {
	switch addr - t.Base() {
	case regStatus:
		t.mu.Lock()
		defer t.mu.Unlock()
		if len(t.inbuf) > 0 {
			return statusReady, true
		}
		return 0, true
	case regData:
		t.mu.Lock()
		defer t.mu.Unlock()
		if len(t.inbuf) == 0 {
			return 0, true
		}
		b := t.inbuf[0]
		t.inbuf = t.inbuf[1:]
		return uint32(b), true
	default:
		return 0, false
	}
}

func (t *Terminal) Write32(addr uint32, val uint32) bool {
	if addr-t.Base() != regData {
		return false
	}
	fmt.Fprintf(t.out, "%c", byte(val))
	return true
}

// PendingIRQ implements device.IRQSource: the console raises its
// assigned hart's external interrupt line while input is queued.
func (t *Terminal) PendingIRQ(hart int) bool {
	if hart != t.hart {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inbuf) > 0
}

// Command implements command.Devicer for `set <name> type <text>`,
// queuing text as if it had been typed at the console -- the REPL's own
// stdin is owned by liner for command entry, so this is how the
// debugger operator feeds console input during a session.
func (t *Terminal) Command(out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("dterminal: usage: type <text> | info | stat")
	}
	switch args[0] {
	case "type":
		t.Feed([]byte(strings.Join(args[1:], " ") + "\n"))
		return nil
	case "info":
		fmt.Fprintln(out, t.Info())
		return nil
	case "stat":
		fmt.Fprintln(out, t.Stat())
		return nil
	default:
		return fmt.Errorf("dterminal: unknown command %q", args[0])
	}
}

func (t *Terminal) Info() string {
	return fmt.Sprintf("address:%#08x hart:%d", t.Base(), t.hart)
}

func (t *Terminal) Stat() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("pending:%d", len(t.inbuf))
}
