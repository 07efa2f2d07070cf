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

// Package gs defines the contract for the Global Socket transport: a
// duplex byte-stream abstraction with readiness-integrated read, write,
// connect, accept, listen, shutdown, close and heartbeat, plus per-handle
// statistics. Its cryptographic handshake, retransmission and rendezvous
// internals are out of scope here (spec.md §1) — this package only
// describes the contract the relay core consumes, and provides one
// concrete TCP-framed stand-in implementation so the repository runs
// end to end.
package gs

import "time"

// Status is the result taxonomy every GS operation reports.
type Status int

const (
	// StatusOK indicates n bytes were transferred (read/write) or the
	// operation completed successfully (connect/accept).
	StatusOK Status = iota
	// StatusAgain indicates the operation would block; the reactor will
	// retry on the next readiness notification ("call again").
	StatusAgain
	// StatusEOF indicates an orderly end of stream.
	StatusEOF
	// StatusFatal indicates an unrecoverable transport error.
	StatusFatal
	// StatusWaiting indicates a connect/accept still in progress.
	StatusWaiting
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAgain:
		return "again"
	case StatusEOF:
		return "eof"
	case StatusFatal:
		return "fatal"
	case StatusWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// Stats mirrors the GS handle fields spec.md §3 names: bytes_read,
// bytes_written and tv_connected.
type Stats struct {
	BytesRead    uint64
	BytesWritten uint64
	Connected    time.Time
	HasConnected bool
}

// Endpoint is one paired GS connection.
type Endpoint interface {
	// Fd returns the descriptor the reactor should watch.
	Fd() int

	// Connect drives an in-progress client-side handshake. Returns
	// StatusWaiting while still connecting, StatusOK once established,
	// StatusFatal on unrecoverable failure.
	Connect() Status

	// Read reads into buf. Returns (n, StatusOK) for n>0, (0, StatusAgain)
	// if no data is currently available, (0, StatusEOF) on orderly close,
	// (0, StatusFatal) on unrecoverable error.
	Read(buf []byte) (int, Status)

	// Write writes a prefix of buf. It returns (n, StatusOK) for the n bytes
	// accepted, which may be fewer than len(buf); (0, StatusAgain) if it
	// would block; or (0, StatusFatal). The engine keeps writing the
	// remainder after a short write.
	Write(buf []byte) (int, Status)

	// Shutdown half-closes the write direction. Returns StatusFatal if the
	// half-close itself failed unrecoverably.
	Shutdown() Status

	// Heartbeat is invoked once per second by the reactor tick.
	Heartbeat()

	// Close releases all resources. Idempotent.
	Close() error

	Stats() Stats
}

// Listener accepts inbound GS connections.
type Listener interface {
	Fd() int
	Listen() error

	// Accept returns a new Endpoint, or (nil, StatusWaiting) if no
	// connection is ready yet, or (nil, StatusFatal) if the listener
	// itself failed (another instance already listening, etc).
	Accept() (Endpoint, Status)

	Heartbeat()
	Close() error
}
