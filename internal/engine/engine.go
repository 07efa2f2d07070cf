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

// Package engine drives the four transfer operations spec.md §4.1 names
// (read-local, write-GS, read-GS, write-local) from reactor callbacks, and
// the session lifecycle (connect completion, SOCKS handshake, teardown)
// that surrounds them. Every callback runs on the single reactor goroutine;
// nothing here spawns a second goroutine that touches session state.
package engine

import (
	"time"

	"github.com/sabouaram/gsrelay/internal/closer"
	relerrors "github.com/sabouaram/gsrelay/internal/errors"
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/localsink"
	"github.com/sabouaram/gsrelay/internal/logger"
	"github.com/sabouaram/gsrelay/internal/reactor"
	"github.com/sabouaram/gsrelay/internal/session"
)

// Engine wires one Reactor, one session Table and one Closer registry
// together. Server and client roles both build sessions and hand them to
// the same Engine; only session construction differs between roles.
type Engine struct {
	r     reactor.Reactor
	table *session.Table
	cl    closer.Closer
	log   logger.Logger

	// onTeardown, if set, is invoked after a session is fully torn down,
	// letting the server/client role react (e.g. exit on single-session
	// client disconnect, per spec.md §7).
	onTeardown func(s *session.Session)
}

// New returns an Engine over an already-running Reactor.
func New(r reactor.Reactor, table *session.Table, cl closer.Closer, log logger.Logger) *Engine {
	e := &Engine{r: r, table: table, cl: cl, log: log}
	r.OnTick(e.heartbeat)
	return e
}

// OnTeardown registers a callback invoked once per torn-down session.
func (e *Engine) OnTeardown(fn func(s *session.Session)) { e.onTeardown = fn }

func (e *Engine) heartbeat() {
	e.table.Each(func(_ int, s *session.Session) {
		if s.GS != nil {
			s.GS.Heartbeat()
		}
	})
}

// Register adds s to the table and wires its GS and local descriptors
// into the reactor. key is normally s.GS.Fd(). A KindSocks session still
// negotiating its handshake has no local descriptor yet: pass nil FdIn/FdOut
// and call BindLocal once the destination resolves and its dial has started.
func (e *Engine) Register(key int, s *session.Session) error {
	if err := e.table.Add(key, s); err != nil {
		return err
	}
	e.cl.Add(s)

	if s.GS != nil {
		read, write := true, false
		if !s.GSConnected() {
			read, write = false, true
		}
		e.r.Add(s.GS.Fd(), func(fd int, write bool) { e.dispatchGS(s, write) }, read, write)
	}
	if s.FdIn != nil {
		e.bindLocalReactor(s)
	}
	return nil
}

// BindLocal wires a local descriptor into the reactor after session
// construction, for the KindSocks path where the destination (and hence
// the local descriptor) is not known until the handshake completes.
func (e *Engine) BindLocal(s *session.Session, fd localsink.LocalFd) {
	s.FdIn = fd
	s.FdOut = fd
	e.bindLocalReactor(s)
}

func (e *Engine) bindLocalReactor(s *session.Session) {
	read, write := true, false
	if !s.FdConnected() {
		read, write = false, true
	}
	e.r.Add(s.FdIn.Fd(), func(fd int, write bool) { e.dispatchLocal(s, write) }, read, write)
}

func (e *Engine) dispatchLocal(s *session.Session, write bool) {
	if write {
		e.onLocalWritable(s)
		return
	}
	e.onLocalReadable(s)
}

func (e *Engine) dispatchGS(s *session.Session, write bool) {
	if !s.GSConnected() {
		e.advanceGSConnect(s)
		return
	}
	if write {
		e.onGSWritable(s)
		return
	}
	e.onGSReadable(s)
}

// onLocalReadable implements spec.md §4.1's read-local / write-GS pair:
// read whatever is available from the local descriptor, then try to push
// it straight to GS so the buffer doesn't sit idle for a full reactor turn.
func (e *Engine) onLocalReadable(s *session.Session) {
	if !s.FdConnected() {
		e.advanceLocalConnect(s)
		return
	}
	if s.OutPending() {
		// Shouldn't normally be reached (read interest is disabled while a
		// write is pending) but guards against a stray readiness event.
		return
	}

	n, st := s.FdIn.Read(s.OutReadBuf())
	switch st {
	case gs.StatusAgain:
		return
	case gs.StatusEOF:
		e.localEOF(s)
		return
	case gs.StatusFatal:
		e.teardown(s, relerrors.New(relerrors.CodeFatalLocal, "local read failed", nil))
		return
	}

	s.FillOut(n)
	if s.Interactive && s.Escape != nil && s.Escape.Scan(s.OutBuf()) {
		e.teardown(s, nil)
		return
	}
	if s.GSConnected() {
		e.flushOut(s)
	}
}

// flushOut writes as much of the local->GS buffer as GS will accept right
// now. If GS blocks, local read interest is dropped until GS write
// readiness drains the buffer (the half-duplex backpressure rule).
func (e *Engine) flushOut(s *session.Session) {
	for s.OutPending() {
		n, st := s.GS.Write(s.OutBuf())
		switch st {
		case gs.StatusOK:
			s.AdvanceOut(n)
		case gs.StatusAgain:
			s.SetSavedReadInterest(e.r.ReadInterest(s.FdIn.Fd()))
			e.r.DisableRead(s.FdIn.Fd())
			e.r.EnableWrite(s.GS.Fd())
			return
		case gs.StatusFatal:
			e.teardown(s, relerrors.New(relerrors.CodeFatalTransport, "GS write failed", nil))
			return
		}
	}
}

// onGSWritable implements the write-GS half once GS reports writable
// again: drain the rest of the buffer, then restore local read interest.
func (e *Engine) onGSWritable(s *session.Session) {
	e.flushOut(s)
	if !s.OutPending() {
		e.r.DisableWrite(s.GS.Fd())
		if s.SavedReadInterest() {
			e.r.EnableRead(s.FdIn.Fd())
		}
	}
}

// onGSReadable implements spec.md §4.1's read-GS / write-local pair. A
// KindSocks session still negotiating is routed to the handshake parser
// instead of treating the bytes as payload.
func (e *Engine) onGSReadable(s *session.Session) {
	if s.Kind == session.KindSocks && s.Socks.State != session.SocksConnected {
		e.advanceSocks(s)
		return
	}
	if s.InPending() {
		return
	}

	n, st := s.GS.Read(s.InReadBuf())
	switch st {
	case gs.StatusAgain:
		return
	case gs.StatusEOF:
		e.gsEOF(s)
		return
	case gs.StatusFatal:
		e.teardown(s, relerrors.New(relerrors.CodeFatalTransport, "GS read failed", nil))
		return
	}

	if s.Interactive && s.IsStdio() && s.RawState() == nil {
		if saved, rawErr := localsink.MakeRaw(s.FdIn.Fd()); rawErr == nil {
			s.SetRawState(saved)
		}
	}

	s.FillIn(n)
	if s.FdConnected() {
		e.flushIn(s)
	}
}

func (e *Engine) flushIn(s *session.Session) {
	for s.InPending() {
		n, st := s.FdOut.Write(s.InBuf())
		switch st {
		case gs.StatusOK:
			s.AdvanceIn(n)
		case gs.StatusAgain:
			e.r.DisableRead(s.GS.Fd())
			e.r.EnableWrite(s.FdOut.Fd())
			return
		case gs.StatusFatal:
			e.teardown(s, relerrors.New(relerrors.CodeFatalLocal, "local write failed", nil))
			return
		}
	}
}

func (e *Engine) onLocalWritable(s *session.Session) {
	if !s.FdConnected() {
		e.advanceLocalConnect(s)
		return
	}
	e.flushIn(s)
	if !s.InPending() {
		e.r.DisableWrite(s.FdOut.Fd())
		e.r.EnableRead(s.GS.Fd())
	}
}

// localEOF mirrors the original's cb_read_fd EOF path. Per spec.md §4.1, a
// stdin_forward session is preserved so the GS->local direction can finish
// draining (until GS reaches EOF too); every other kind tears down
// immediately.
func (e *Engine) localEOF(s *session.Session) {
	e.r.DisableRead(s.FdIn.Fd())
	if s.GS.Shutdown() == gs.StatusFatal {
		e.teardown(s, relerrors.New(relerrors.CodeFatalTransport, "GS shutdown failed", nil))
		return
	}
	if !s.IsStdio() {
		e.teardown(s, nil)
		return
	}
	s.SetLocalEOFSeen(true)
	if s.GSEOFSeen() {
		e.teardown(s, nil)
	}
}

// gsEOF mirrors the original's cb_read_gs EOF path: GS is done sending, so
// the local fd is half-closed. In receive-only mode (-r) the session tears
// down immediately, without waiting for the local side; otherwise it is
// preserved so local->GS can continue, until the local side reaches EOF too
// (spec.md §4.1, §6, §8's "File transfer" scenario).
func (e *Engine) gsEOF(s *session.Session) {
	e.r.DisableRead(s.GS.Fd())
	if s.FdOut.Shutdown() == gs.StatusFatal {
		e.teardown(s, relerrors.New(relerrors.CodeFatalLocal, "local shutdown failed", nil))
		return
	}
	if s.ReceiveOnly {
		e.teardown(s, nil)
		return
	}
	s.SetGSEOFSeen(true)
	if s.LocalEOFSeen() {
		e.teardown(s, nil)
	}
}

// teardown mirrors peer_free: deregister from the reactor, remove from the
// table and closer registry, log statistics if the session ever finished
// connecting, and close descriptors (stdio descriptors are left open).
func (e *Engine) teardown(s *session.Session, cause error) {
	if s.GS != nil {
		e.r.Remove(s.GS.Fd())
	}
	if s.FdIn != nil {
		e.r.Remove(s.FdIn.Fd())
	}
	if s.FdOut != nil && s.FdOut != s.FdIn {
		e.r.Remove(s.FdOut.Fd())
	}

	var key int = -1
	if s.GS != nil {
		key = s.GS.Fd()
	}
	if key >= 0 {
		e.table.Remove(key)
	}
	e.cl.Remove(s)

	if report, ok := s.BuildReport(time.Now()); ok {
		e.log.Info(report.String())
	}
	if cause != nil {
		e.log.Warn(cause.Error())
	}

	if saved := s.RawState(); saved != nil && s.FdIn != nil {
		_ = localsink.RestoreTerm(s.FdIn.Fd(), saved)
	}

	_ = s.Close()

	if e.onTeardown != nil {
		e.onTeardown(s)
	}
}
