/*
 * msim - terminal size reporting (fallback)
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

//go:build !unix

package main

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// printBanner is winsize_unix.go's non-unix fallback: SIGWINCH doesn't
// exist off unix, so it reports size once and does not watch for resizes.
func printBanner(log *slog.Logger) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fmt.Println("msim")
		return
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		fmt.Println("msim")
		return
	}
	fmt.Printf("msim (%dx%d terminal)\n", w, h)
	log.Debug("terminal size", "width", w, "height", h)
}
