/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package localsink provides the four local data sources a session's
// fd_in/fd_out can be bound to: a spawned subprocess, an outbound TCP
// connection, the operator's stdin/stdout, and (via the SOCKS-resolved
// destination) a second flavour of outbound TCP. All of them satisfy the
// same LocalFd contract so internal/engine never has to special-case them.
package localsink

import "github.com/sabouaram/gsrelay/internal/gs"

// LocalFd is the local-descriptor abstraction the transfer engine drives.
// fd_in and fd_out (spec.md §3) may be the same LocalFd (subprocess,
// outbound TCP) or two wrappers sharing the process's stdio (stdin/stdout
// forward).
type LocalFd interface {
	Fd() int

	// Connect drives a non-blocking connect to completion. Kinds that are
	// already connected at creation (subprocess, stdio) return StatusOK
	// immediately.
	Connect() gs.Status

	Read(buf []byte) (int, gs.Status)
	Write(buf []byte) (int, gs.Status)

	// Shutdown half-closes the write direction where that is meaningful
	// (outbound TCP, subprocess pipe); it is a no-op returning StatusOK for
	// stdio, per spec.md §3's "must NOT be closed on teardown" rule.
	Shutdown() gs.Status

	// IsStdio reports whether this wraps the process's own stdin/stdout,
	// which teardown must never close (spec.md §4.2).
	IsStdio() bool

	Close() error
}
