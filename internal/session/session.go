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

// Package session holds the one peer record per relayed connection: the
// paired GS handle, the local descriptor(s), the half-duplex buffers that
// move bytes between them, and the SOCKS sub-state for KindSocks sessions.
package session

import (
	"net"
	"time"

	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/localsink"
	"github.com/sabouaram/gsrelay/internal/socks"
)

// bufSize is the fixed transfer chunk, matching the original's GS_BUFSIZE.
const bufSize = 16384

// Socks holds the nested state machine for a KindSocks session: bytes are
// buffered and handed to the parser until a destination resolves, then a
// second outbound connect is driven to completion before payload bytes flow.
type Socks struct {
	State       SocksState
	Parser      *socks.Parser
	DstIP       net.IP
	DstPort     uint16
	DstHostname string
}

// Session is one peer: a GS endpoint paired with a local descriptor (or a
// stdin/stdout pair), per spec.md §3.
type Session struct {
	Kind Kind

	GS    gs.Endpoint
	FdIn  localsink.LocalFd
	FdOut localsink.LocalFd

	// ReceiveOnly is the config-level -r flag, set once at construction: on
	// GS EOF the session tears down immediately instead of waiting for the
	// local side to reach EOF too (spec.md §4.1, §6, §8's "File transfer"
	// scenario).
	ReceiveOnly bool

	// Interactive sessions watch for the "~." disconnect sequence on data
	// read from FdIn (spec.md §12) and flip the TTY to raw mode on the
	// first byte read from GS (spec.md §4.1).
	Interactive bool
	Escape      *localsink.EscapeWatcher
	rawState    *localsink.TermState

	// fdConnected/gsConnected track whether the respective non-blocking
	// connect has completed; until both are true no payload is exchanged.
	fdConnected bool
	gsConnected bool

	// gsEOFSeen/localEOFSeen record which direction(s) have already reached
	// EOF in a non-receive-only session, so it tears down once both sides
	// are done instead of leaving both read interests disabled forever.
	gsEOFSeen    bool
	localEOFSeen bool

	// savedReadInterest remembers whether the local side wanted to read
	// before a downstream write backpressured it off, so read interest can
	// be restored once the write drains (spec.md §4.1's half-duplex rule).
	savedReadInterest bool

	// local -> GS buffer: bytes read from FdIn waiting to be written to GS.
	outBuf []byte
	outLen int
	outPos int

	// GS -> local buffer: bytes read from GS waiting to be written to FdIn/FdOut.
	inBuf []byte
	inLen int
	inPos int

	Socks Socks

	connectedAt time.Time
	hasStats    bool
}

// NewStdio builds a stdio-forward session: fd_in and fd_out wrap the
// process's own stdin and stdout. gsConnected is false when endpoint is
// still dialing out (client single-session mode).
func NewStdio(endpoint gs.Endpoint, in, out localsink.LocalFd, interactive, gsConnected bool) *Session {
	s := &Session{
		Kind:        KindStdio,
		GS:          endpoint,
		FdIn:        in,
		FdOut:       out,
		fdConnected: true,
		gsConnected: gsConnected,
		Interactive: interactive,
	}
	if interactive {
		s.Escape = localsink.NewEscapeWatcher()
	}
	return s
}

// NewSubprocess builds a session forwarding to a spawned command; fd_in
// and fd_out are the same descriptor.
func NewSubprocess(endpoint gs.Endpoint, proc localsink.LocalFd, gsConnected bool) *Session {
	return &Session{
		Kind:        KindSubprocess,
		GS:          endpoint,
		FdIn:        proc,
		FdOut:       proc,
		fdConnected: true,
		gsConnected: gsConnected,
	}
}

// NewOutbound builds a session forwarding to a fixed destination (server's
// -d/-p) or an already-accepted inbound TCP connection (client's listen
// mode); fd_in and fd_out are the same descriptor.
func NewOutbound(endpoint gs.Endpoint, conn localsink.LocalFd, fdConnected, gsConnected bool) *Session {
	return &Session{
		Kind:        KindOutboundTCP,
		GS:          endpoint,
		FdIn:        conn,
		FdOut:       conn,
		fdConnected: fdConnected,
		gsConnected: gsConnected,
	}
}

// NewSocksAccept builds a session still negotiating its SOCKS handshake;
// the local destination is not yet known. The GS endpoint is always
// already connected here: SOCKS sessions only arise from an accepted
// inbound GS connection, never a dial.
func NewSocksAccept(endpoint gs.Endpoint) *Session {
	return &Session{
		Kind:        KindSocks,
		GS:          endpoint,
		gsConnected: true,
		Socks: Socks{
			State:  SocksInit,
			Parser: socks.New(),
		},
	}
}

func (s *Session) FdConnected() bool { return s.fdConnected }
func (s *Session) SetFdConnected(v bool) { s.fdConnected = v }
func (s *Session) GSConnected() bool { return s.gsConnected }
func (s *Session) SetGSConnected(v bool) { s.gsConnected = v }

func (s *Session) SavedReadInterest() bool     { return s.savedReadInterest }
func (s *Session) SetSavedReadInterest(v bool) { s.savedReadInterest = v }

func (s *Session) GSEOFSeen() bool        { return s.gsEOFSeen }
func (s *Session) SetGSEOFSeen(v bool)    { s.gsEOFSeen = v }
func (s *Session) LocalEOFSeen() bool     { return s.localEOFSeen }
func (s *Session) SetLocalEOFSeen(v bool) { s.localEOFSeen = v }

// RawState returns the saved terminal settings once the TTY has been
// flipped to raw mode (nil beforehand), so the engine only toggles it once
// per session and can restore it on teardown.
func (s *Session) RawState() *localsink.TermState     { return s.rawState }
func (s *Session) SetRawState(v *localsink.TermState) { s.rawState = v }

// OutPending reports whether the local->GS buffer still has unwritten bytes.
func (s *Session) OutPending() bool { return s.outPos < s.outLen }

// OutBuf returns the unwritten tail of the local->GS buffer.
func (s *Session) OutBuf() []byte { return s.outBuf[s.outPos:s.outLen] }

// FillOut replaces the local->GS buffer with n freshly read bytes.
func (s *Session) FillOut(n int) {
	if cap(s.outBuf) < bufSize {
		s.outBuf = make([]byte, bufSize)
	}
	s.outLen, s.outPos = n, 0
}

// OutReadBuf returns the buffer a local read should fill.
func (s *Session) OutReadBuf() []byte {
	if cap(s.outBuf) < bufSize {
		s.outBuf = make([]byte, bufSize)
	}
	return s.outBuf[:bufSize]
}

// AdvanceOut records that n more bytes of the local->GS buffer were written.
func (s *Session) AdvanceOut(n int) { s.outPos += n }

// InPending reports whether the GS->local buffer still has unwritten bytes.
func (s *Session) InPending() bool { return s.inPos < s.inLen }

func (s *Session) InBuf() []byte { return s.inBuf[s.inPos:s.inLen] }

func (s *Session) FillIn(n int) {
	if cap(s.inBuf) < bufSize {
		s.inBuf = make([]byte, bufSize)
	}
	s.inLen, s.inPos = n, 0
}

func (s *Session) InReadBuf() []byte {
	if cap(s.inBuf) < bufSize {
		s.inBuf = make([]byte, bufSize)
	}
	return s.inBuf[:bufSize]
}

func (s *Session) AdvanceIn(n int) { s.inPos += n }

// MarkConnected records the first time the session is marked connected
// (the server marks it on GS accept, the engine when a connect completes),
// for the statistics reporter (spec.md §8). Later calls are ignored.
func (s *Session) MarkConnected(at time.Time) {
	if !s.hasStats {
		s.connectedAt = at
		s.hasStats = true
	}
}

func (s *Session) ConnectedAt() (time.Time, bool) { return s.connectedAt, s.hasStats }

// IsStdio reports whether this session must never close its local fds on
// teardown (spec.md §4.2).
func (s *Session) IsStdio() bool {
	return s.FdIn != nil && s.FdIn.IsStdio()
}

// Close releases the GS endpoint and, unless this is a stdio session, the
// local descriptor(s).
func (s *Session) Close() error {
	var firstErr error
	if s.GS != nil {
		if err := s.GS.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.IsStdio() {
		return firstErr
	}
	if s.FdIn != nil {
		if err := s.FdIn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.FdOut != nil && s.FdOut != s.FdIn {
		if err := s.FdOut.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
