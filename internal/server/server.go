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

// Package server implements the relay's listening role: it waits for
// inbound GS connections and, per connection, dispatches to a local sink
// chosen with the priority spec.md §6 and the original's peer_new give it:
// spawned command first, then a fixed destination, then a SOCKS proxy,
// and stdio forward as the fallback.
package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sabouaram/gsrelay/internal/closer"
	"github.com/sabouaram/gsrelay/internal/config"
	"github.com/sabouaram/gsrelay/internal/engine"
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/localsink"
	"github.com/sabouaram/gsrelay/internal/logger"
	"github.com/sabouaram/gsrelay/internal/reactor"
	"github.com/sabouaram/gsrelay/internal/session"
)

// Server runs the listening role described above.
type Server struct {
	cfg *config.Config
	log logger.Logger

	r     reactor.Reactor
	table *session.Table
	cl    closer.Closer
	eng   *engine.Engine

	listener gs.Listener
}

// New builds a Server bound to cfg. It does not start listening yet.
func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("server: reactor init: %w", err)
	}

	table := session.NewTable(cfg.MaxPeers)
	cl := closer.New()
	eng := engine.New(r, table, cl, log)

	return &Server{cfg: cfg, log: log, r: r, table: table, cl: cl, eng: eng}, nil
}

func splitHostPort(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("server: invalid port %q: %w", portStr, err)
	}
	return host, uint16(port), nil
}

// Run binds the GS listener and drives the reactor until it terminates.
// The returned int is the process exit code.
func (s *Server) Run() int {
	_, port, err := splitHostPort(s.cfg.GSBind)
	if err != nil {
		s.log.Error("invalid -gs-bind", logger.Fields{"error": err.Error()})
		return 1
	}

	l, err := gs.ListenNonblocking(port)
	if err != nil {
		s.log.Error("listener bind failed", logger.Fields{"error": err.Error()})
		return 1
	}
	if err = l.Listen(); err != nil {
		s.log.Error("listener listen failed", logger.Fields{"error": err.Error()})
		return 1
	}
	s.listener = l
	defer l.Close()

	s.r.OnTick(func() { s.listener.Heartbeat() })

	if err = s.r.Add(l.Fd(), func(fd int, write bool) { s.onAcceptable() }, true, false); err != nil {
		s.log.Error("listener reactor registration failed", logger.Fields{"error": err.Error()})
		return 1
	}

	s.log.Info("server listening", logger.Fields{"bind": s.cfg.GSBind})
	return s.r.Run()
}

func (s *Server) onAcceptable() {
	for {
		ep, st := s.listener.Accept()
		switch st {
		case gs.StatusWaiting:
			return
		case gs.StatusFatal:
			s.log.Error("listener accept failed, terminating")
			s.r.Terminate(1)
			return
		}
		s.dispatch(ep)
	}
}

// dispatch implements the original's peer_new local-sink selection order:
// spawned command, fixed destination, SOCKS proxy, stdio forward.
func (s *Server) dispatch(ep gs.Endpoint) {
	var (
		sess *session.Session
		err  error
	)

	switch {
	case s.cfg.Exec != "":
		sess, err = s.dispatchExec(ep)
	case s.cfg.Dest != "":
		sess, err = s.dispatchFixedDest(ep)
	case s.cfg.Socks:
		sess = session.NewSocksAccept(ep)
	default:
		sess, err = s.dispatchStdio(ep)
	}

	if err != nil {
		s.log.Warn("session setup failed", logger.Fields{"error": err.Error()})
		_ = ep.Close()
		return
	}

	sess.ReceiveOnly = s.cfg.ReceiveOnly
	sess.MarkConnected(time.Now())
	if regErr := s.eng.Register(ep.Fd(), sess); regErr != nil {
		s.log.Warn("session rejected", logger.Fields{"error": regErr.Error()})
		_ = sess.Close()
	}
}

func (s *Server) dispatchExec(ep gs.Endpoint) (*session.Session, error) {
	proc, err := localsink.Spawn(s.cfg.Exec)
	if err != nil {
		return nil, fmt.Errorf("spawn %q: %w", s.cfg.Exec, err)
	}
	return session.NewSubprocess(ep, proc, true), nil
}

func (s *Server) dispatchFixedDest(ep gs.Endpoint) (*session.Session, error) {
	ips, err := net.LookupIP(s.cfg.Dest)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("resolve %q: %w", s.cfg.Dest, err)
	}
	var ip net.IP
	for _, candidate := range ips {
		if v4 := candidate.To4(); v4 != nil {
			ip = v4
			break
		}
	}
	if ip == nil {
		return nil, fmt.Errorf("resolve %q: no IPv4 address", s.cfg.Dest)
	}

	conn, err := localsink.DialOutbound(ip, s.cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("dial %s:%d: %w", ip, s.cfg.Port, err)
	}
	return session.NewOutbound(ep, conn, false, true), nil
}

func (s *Server) dispatchStdio(ep gs.Endpoint) (*session.Session, error) {
	in, err := localsink.Stdin()
	if err != nil {
		return nil, err
	}
	out, err := localsink.Stdout()
	if err != nil {
		return nil, err
	}
	return session.NewStdio(ep, in, out, s.cfg.Interactive, true), nil
}
