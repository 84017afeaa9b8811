/*
 * msim - config file loader
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

// Package configparser loads msim's line-oriented configuration file
// (spec.md section 6, "Config file"): one directive per line, a
// registration table of handlers keyed by the directive's first word,
// and syntax errors that carry the offending line number. Grounded on
// the teacher's config/configparser.go, which takes the same
// register-a-handler-per-keyword approach rather than a generic
// key=value or struct-tag-driven format.
package configparser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Handler processes one directive's arguments (the words after the
// keyword that selected it).
type Handler func(args []string) error

// SyntaxError reports a config file problem at a specific line.
type SyntaxError struct {
	File string
	Line int
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parser holds the directive-keyword-to-handler registration table.
type Parser struct {
	handlers map[string]Handler
}

// New creates an empty parser. Call Register for every directive the
// caller wants recognized before calling Load.
func New() *Parser {
	return &Parser{handlers: make(map[string]Handler)}
}

// Register binds keyword to handler. Registering the same keyword twice
// replaces the previous handler, matching the teacher's last-registration-
// wins convention for device/command tables.
func (p *Parser) Register(keyword string, h Handler) {
	p.handlers[strings.ToLower(keyword)] = h
}

// Load reads and executes every directive in path, in order. Blank
// lines and lines beginning with '#' are ignored. Each directive's
// first word selects the handler; an unrecognized keyword or a handler
// error is returned as a *SyntaxError carrying the 1-based line number.
func (p *Parser) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.loadFrom(path, f)
}

func (p *Parser) loadFrom(name string, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		keyword := strings.ToLower(fields[0])
		h, ok := p.handlers[keyword]
		if !ok {
			return &SyntaxError{File: name, Line: line, Err: fmt.Errorf("unknown directive %q", fields[0])}
		}
		if err := h(fields[1:]); err != nil {
			return &SyntaxError{File: name, Line: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ResolvePath implements spec.md section 6's search order for the
// config file: an explicit --config flag value, else $MSIMCONF, else
// ./msim.conf. Returns "" if none exist and no explicit path was given.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("MSIMCONF"); env != "" {
		return env
	}
	if _, err := os.Stat("msim.conf"); err == nil {
		return "msim.conf"
	}
	return ""
}
