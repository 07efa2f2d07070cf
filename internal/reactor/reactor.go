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

// Package reactor implements the single-threaded, readiness-based event
// loop the relay core is built on: a fixed-capacity descriptor table with
// read/write callbacks, explicit enable/disable interest per descriptor,
// and a once-per-second tick used to drive GS heartbeats. All I/O dispatch
// happens on the goroutine that calls Run.
package reactor

import "time"

// Callback is invoked when a descriptor becomes ready. fd is the ready
// descriptor; write is true for a writability event, false for readability.
type Callback func(fd int, write bool)

// TickFunc is invoked once per second from the reactor goroutine.
type TickFunc func()

// Reactor is the readiness-integrated event loop the engine depends on.
type Reactor interface {
	// Add registers fd with the given callback and initial interest.
	// Subsequent Add calls for the same fd replace its callback and interest.
	Add(fd int, cb Callback, readInterest, writeInterest bool) error
	// Remove deregisters fd. It is a no-op if fd was never added.
	Remove(fd int)

	EnableRead(fd int)
	DisableRead(fd int)
	EnableWrite(fd int)
	DisableWrite(fd int)

	// ReadInterest/WriteInterest report whether fd currently has interest
	// registered, exposing the bitsets spec.md §4.6 calls for.
	ReadInterest(fd int) bool
	WriteInterest(fd int) bool

	// OnTick registers a function invoked every tick period (1s per spec.md §4.6).
	OnTick(fn TickFunc)

	// Terminate requests the Run loop to stop as soon as the current callback
	// returns, with the given process exit code. Replaces the
	// original's "exit from inside the callback" pattern (spec.md §9).
	Terminate(code int)

	// Run drives the loop until Terminate is called or a fatal poll error
	// occurs. It returns the exit code passed to Terminate, or -1 on a
	// fatal poll error (spec.md §4.6: reaching that path is a fatal bug).
	Run() int
}

const tickPeriod = time.Second
