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
	"net"

	relerrors "github.com/sabouaram/gsrelay/internal/errors"
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/localsink"
	"github.com/sabouaram/gsrelay/internal/session"
)

// socksHandshakeBufSize is small: the CONNECT handshake itself is a few
// dozen bytes, never a full transfer chunk.
const socksHandshakeBufSize = 512

// advanceSocks feeds bytes arriving from GS to the session's SOCKS parser
// (spec.md §4.3) until a destination resolves, then dials it and hands the
// session over to the ordinary read-GS/write-local path.
func (e *Engine) advanceSocks(s *session.Session) {
	buf := make([]byte, socksHandshakeBufSize)
	n, st := s.GS.Read(buf)
	switch st {
	case gs.StatusAgain:
		return
	case gs.StatusEOF:
		e.teardown(s, nil)
		return
	case gs.StatusFatal:
		e.teardown(s, relerrors.New(relerrors.CodeFatalTransport, "GS read failed during SOCKS handshake", nil))
		return
	}

	data := buf[:n]
	done := false
	for len(data) > 0 && !done {
		consumed, reply, handshakeDone, err := s.Socks.Parser.Feed(data)
		data = data[consumed:]
		if err != nil {
			e.teardown(s, relerrors.New(relerrors.CodeSocksProtocol, "SOCKS handshake rejected", err))
			return
		}
		if len(reply) > 0 {
			if _, wst := s.GS.Write(reply); wst == gs.StatusFatal {
				e.teardown(s, relerrors.New(relerrors.CodeFatalTransport, "GS write failed replying to SOCKS client", nil))
				return
			}
		}
		done = handshakeDone
	}

	if !done {
		return
	}
	e.dialSocksTarget(s)

	// Any bytes a low-latency client pipelined right after the handshake
	// request are payload for the now-dialed target, not more handshake:
	// stage them in rbuf so the connect-completion flush drains them once
	// the local side finishes connecting, instead of re-entering the parser.
	if len(data) > 0 {
		copy(s.InReadBuf(), data)
		s.FillIn(len(data))
	}
}

func (e *Engine) dialSocksTarget(s *session.Session) {
	target := s.Socks.Parser.Target()
	ip := target.IP
	if ip == nil || ip.String() != target.Hostname {
		ip = nil
		ips, _ := net.LookupIP(target.Hostname)
		for i := 0; i < len(ips) && ip == nil; i++ {
			ip = ips[i].To4()
		}
		if ip == nil {
			e.teardown(s, relerrors.Newf(relerrors.CodeFatalLocal, nil, "SOCKS target %q has no IPv4 address", target.Hostname))
			return
		}
	}
	s.Socks.DstIP = ip
	s.Socks.DstPort = target.Port
	s.Socks.DstHostname = target.Hostname
	s.Socks.State = session.SocksConnecting

	local, err := localsink.DialOutbound(ip, target.Port)
	if err != nil {
		e.teardown(s, relerrors.New(relerrors.CodeFatalLocal, "SOCKS target dial failed", err))
		return
	}

	e.BindLocal(s, local)
	s.Socks.State = session.SocksConnected
}
