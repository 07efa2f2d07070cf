/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errors provides the numeric-coded error taxonomy that the relay
// core uses to classify failures: would-block, EOF, fatal-transport,
// fatal-local, SOCKS-protocol, listener-fatal and connect-fatal.
package errors

import (
	"errors"
	"fmt"
)

// CodeError classifies an Error the way an HTTP status code classifies a
// response. Values below 100 are reserved for this package.
type CodeError uint16

const (
	// CodeUnknown is used when no more specific code applies.
	CodeUnknown CodeError = iota
	// CodeWouldBlock marks a read/write that made no progress and must be retried later.
	CodeWouldBlock
	// CodeEOF marks an orderly end of stream on one direction.
	CodeEOF
	// CodeFatalTransport marks an unrecoverable error reported by the GS handle.
	CodeFatalTransport
	// CodeFatalLocal marks a local descriptor read/write error other than WouldBlock.
	CodeFatalLocal
	// CodeSocksProtocol marks rejection by the SOCKS parser.
	CodeSocksProtocol
	// CodeListenerFatal marks a listener bind/accept failure; the process exits.
	CodeListenerFatal
	// CodeConnectFatal marks a GS connect failure in single-session client mode; the process exits.
	CodeConnectFatal
)

func (c CodeError) String() string {
	switch c {
	case CodeWouldBlock:
		return "would-block"
	case CodeEOF:
		return "eof"
	case CodeFatalTransport:
		return "fatal-transport"
	case CodeFatalLocal:
		return "fatal-local"
	case CodeSocksProtocol:
		return "socks-protocol"
	case CodeListenerFatal:
		return "listener-fatal"
	case CodeConnectFatal:
		return "connect-fatal"
	default:
		return "unknown"
	}
}

// Error is a code-carrying error with an optional parent chain, compatible
// with errors.Is/errors.As through Unwrap.
type Error interface {
	error
	Code() CodeError
	Unwrap() error
}

type relayError struct {
	code   CodeError
	msg    string
	parent error
}

// New builds an Error with the given code and message, optionally wrapping a parent error.
func New(code CodeError, msg string, parent error) Error {
	return &relayError{code: code, msg: msg, parent: parent}
}

// Newf is New with fmt.Sprintf-style message formatting.
func Newf(code CodeError, parent error, format string, args ...interface{}) Error {
	return &relayError{code: code, msg: fmt.Sprintf(format, args...), parent: parent}
}

func (e *relayError) Error() string {
	if e.parent != nil {
		return fmt.Sprintf("[%s] %s: %s", e.code, e.msg, e.parent.Error())
	}
	return fmt.Sprintf("[%s] %s", e.code, e.msg)
}

func (e *relayError) Code() CodeError {
	return e.code
}

func (e *relayError) Unwrap() error {
	return e.parent
}

// Is reports whether e carries the given code, matching through the parent chain.
func Is(e error, code CodeError) bool {
	var r Error
	for e != nil {
		if errors.As(e, &r) {
			if r.Code() == code {
				return true
			}
			e = r.Unwrap()
			continue
		}
		return false
	}
	return false
}

// Get returns e as an Error if it (or a wrapped error in its chain) is one.
func Get(e error) (Error, bool) {
	var r Error
	ok := errors.As(e, &r)
	return r, ok
}
