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

package engine_test

import (
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/reactor"
)

// fakeEndpoint is an in-memory gs.Endpoint over a pair of byte queues,
// letting engine tests drive both directions without a real socket.
type fakeEndpoint struct {
	fd int

	toPeer  *queue // bytes written here are "sent"
	fromNet *queue // bytes here are "received"

	connectStatus gs.Status
	writeStatus   gs.Status
	closed        bool
	stats         gs.Stats
}

func newFakeEndpoint(fd int) *fakeEndpoint {
	return &fakeEndpoint{fd: fd, toPeer: newQueue(), fromNet: newQueue(), connectStatus: gs.StatusOK}
}

func (f *fakeEndpoint) Fd() int        { return f.fd }
func (f *fakeEndpoint) Connect() gs.Status { return f.connectStatus }

func (f *fakeEndpoint) Read(buf []byte) (int, gs.Status) {
	if f.fromNet.eof && f.fromNet.Len() == 0 {
		return 0, gs.StatusEOF
	}
	n := f.fromNet.Read(buf)
	if n == 0 {
		return 0, gs.StatusAgain
	}
	f.stats.BytesRead += uint64(n)
	return n, gs.StatusOK
}

func (f *fakeEndpoint) Write(buf []byte) (int, gs.Status) {
	if f.writeStatus == gs.StatusAgain {
		return 0, gs.StatusAgain
	}
	if f.writeStatus == gs.StatusFatal {
		return 0, gs.StatusFatal
	}
	f.toPeer.Write(buf)
	f.stats.BytesWritten += uint64(len(buf))
	return len(buf), gs.StatusOK
}

func (f *fakeEndpoint) Shutdown() gs.Status { return gs.StatusOK }
func (f *fakeEndpoint) Heartbeat()          {}
func (f *fakeEndpoint) Close() error        { f.closed = true; return nil }
func (f *fakeEndpoint) Stats() gs.Stats     { return f.stats }

// fakeLocalFd is an in-memory localsink.LocalFd over a byte queue.
type fakeLocalFd struct {
	fd int

	in  *queue // bytes available to Read
	out *queue // bytes captured by Write

	connectStatus gs.Status
	writeStatus   gs.Status
	isStdio       bool
	closed        bool
}

func newFakeLocalFd(fd int) *fakeLocalFd {
	return &fakeLocalFd{fd: fd, in: newQueue(), out: newQueue(), connectStatus: gs.StatusOK}
}

func (f *fakeLocalFd) Fd() int            { return f.fd }
func (f *fakeLocalFd) Connect() gs.Status { return f.connectStatus }

func (f *fakeLocalFd) Read(buf []byte) (int, gs.Status) {
	if f.in.eof && f.in.Len() == 0 {
		return 0, gs.StatusEOF
	}
	n := f.in.Read(buf)
	if n == 0 {
		return 0, gs.StatusAgain
	}
	return n, gs.StatusOK
}

func (f *fakeLocalFd) Write(buf []byte) (int, gs.Status) {
	if f.writeStatus == gs.StatusAgain {
		return 0, gs.StatusAgain
	}
	if f.writeStatus == gs.StatusFatal {
		return 0, gs.StatusFatal
	}
	f.out.Write(buf)
	return len(buf), gs.StatusOK
}

func (f *fakeLocalFd) Shutdown() gs.Status { return gs.StatusOK }
func (f *fakeLocalFd) IsStdio() bool       { return f.isStdio }
func (f *fakeLocalFd) Close() error        { f.closed = true; return nil }

// queue is a minimal byte FIFO good enough to stand in for a non-blocking
// descriptor in tests: Read drains what is available without blocking.
type queue struct {
	buf []byte
	eof bool
}

func newQueue() *queue { return &queue{} }

func (q *queue) Write(p []byte) {
	q.buf = append(q.buf, p...)
}

func (q *queue) Read(p []byte) int {
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	return n
}

func (q *queue) Len() int { return len(q.buf) }

func (q *queue) SetEOF() { q.eof = true }

// fakeReactor is an in-memory reactor.Reactor: tests call Fire directly
// instead of driving a real epoll loop, and assert on interest state after
// each engine callback runs.
type fakeReactor struct {
	descs map[int]*fakeDesc
	ticks []reactor.TickFunc
	code  int
	term  bool
}

type fakeDesc struct {
	cb    reactor.Callback
	read  bool
	write bool
}

func newFakeReactor() *fakeReactor {
	return &fakeReactor{descs: make(map[int]*fakeDesc)}
}

func (r *fakeReactor) Add(fd int, cb reactor.Callback, readInterest, writeInterest bool) error {
	r.descs[fd] = &fakeDesc{cb: cb, read: readInterest, write: writeInterest}
	return nil
}

func (r *fakeReactor) Remove(fd int) { delete(r.descs, fd) }

func (r *fakeReactor) EnableRead(fd int) {
	if d, ok := r.descs[fd]; ok {
		d.read = true
	}
}

func (r *fakeReactor) DisableRead(fd int) {
	if d, ok := r.descs[fd]; ok {
		d.read = false
	}
}

func (r *fakeReactor) EnableWrite(fd int) {
	if d, ok := r.descs[fd]; ok {
		d.write = true
	}
}

func (r *fakeReactor) DisableWrite(fd int) {
	if d, ok := r.descs[fd]; ok {
		d.write = false
	}
}

func (r *fakeReactor) ReadInterest(fd int) bool {
	if d, ok := r.descs[fd]; ok {
		return d.read
	}
	return false
}

func (r *fakeReactor) WriteInterest(fd int) bool {
	if d, ok := r.descs[fd]; ok {
		return d.write
	}
	return false
}

func (r *fakeReactor) OnTick(fn reactor.TickFunc) { r.ticks = append(r.ticks, fn) }

func (r *fakeReactor) Terminate(code int) { r.term = true; r.code = code }

func (r *fakeReactor) Run() int { return r.code }

// Fire invokes fd's registered callback as if it had just become ready.
func (r *fakeReactor) Fire(fd int, write bool) {
	if d, ok := r.descs[fd]; ok && d.cb != nil {
		d.cb(fd, write)
	}
}

func (r *fakeReactor) Registered(fd int) bool {
	_, ok := r.descs[fd]
	return ok
}
