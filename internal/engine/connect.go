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

package engine

import (
	"time"

	relerrors "github.com/sabouaram/gsrelay/internal/errors"
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/session"
)

// advanceGSConnect drives a still-connecting GS endpoint (spec.md §4.2's
// completed_connect). Once both sides are up, read interest replaces write
// interest and any buffered local bytes are flushed immediately.
func (e *Engine) advanceGSConnect(s *session.Session) {
	switch s.GS.Connect() {
	case gs.StatusWaiting:
		return
	case gs.StatusFatal:
		e.teardown(s, relerrors.New(relerrors.CodeConnectFatal, "GS connect failed", nil))
		return
	case gs.StatusOK:
		s.SetGSConnected(true)
		e.r.DisableWrite(s.GS.Fd())
		e.r.EnableRead(s.GS.Fd())
		s.MarkConnected(time.Now())
		if s.FdConnected() && s.OutPending() {
			e.flushOut(s)
		}
	}
}

// advanceLocalConnect drives a still-connecting local descriptor (the
// server's fixed-destination forward or a SOCKS-resolved target).
func (e *Engine) advanceLocalConnect(s *session.Session) {
	switch s.FdIn.Connect() {
	case gs.StatusWaiting:
		return
	case gs.StatusFatal:
		e.teardown(s, relerrors.New(relerrors.CodeFatalLocal, "local connect failed", nil))
		return
	case gs.StatusOK:
		s.SetFdConnected(true)
		e.r.DisableWrite(s.FdIn.Fd())
		e.r.EnableRead(s.FdIn.Fd())
		s.MarkConnected(time.Now())
		if s.GSConnected() && s.InPending() {
			e.flushIn(s)
		}
	}
}
