/*
 * msim - GDB remote-serial-protocol stub (placeholder)
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

// Package gdbstub is a placeholder boundary for a remote GDB
// remote-serial-protocol server. Implementing the protocol itself is a
// named Non-goal; this package exists so cmd/msim has a real, typed
// attachment point to wire a future implementation into rather than a
// commented-out flag.
package gdbstub

import "fmt"

// Stub is an unattached GDB server. Listen always fails: there is
// nothing behind it yet.
type Stub struct {
	addr string
}

// New creates a Stub that would listen on addr if Listen were
// implemented.
func New(addr string) *Stub {
	return &Stub{addr: addr}
}

// Listen reports that the GDB stub is not implemented.
func (s *Stub) Listen() error {
	return fmt.Errorf("gdbstub: remote debugging on %s is not implemented", s.addr)
}
