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

// Package client implements the relay's dialing role. In single-session
// mode (the default, -p unset) it dials one GS connection and forwards the
// process's own stdio to it, exiting if the connect fails (spec.md §7). When
// -p is set it instead listens on that local TCP port and dials a fresh GS
// connection per accepted connection, matching the original's do_client
// multi-session accept loop.
package client

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/gsrelay/internal/closer"
	"github.com/sabouaram/gsrelay/internal/config"
	"github.com/sabouaram/gsrelay/internal/engine"
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/localsink"
	"github.com/sabouaram/gsrelay/internal/logger"
	"github.com/sabouaram/gsrelay/internal/reactor"
	"github.com/sabouaram/gsrelay/internal/session"
)

// Client runs the dialing role described above.
type Client struct {
	cfg *config.Config
	log logger.Logger

	r     reactor.Reactor
	table *session.Table
	cl    closer.Closer
	eng   *engine.Engine

	gsHost string
	gsPort uint16
}

// New builds a Client bound to cfg. It does not connect yet.
func New(cfg *config.Config, log logger.Logger) (*Client, error) {
	host, portStr, err := net.SplitHostPort(cfg.GSConnect)
	if err != nil {
		return nil, fmt.Errorf("client: invalid -gs-connect: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("client: invalid -gs-connect port: %w", err)
	}

	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("client: reactor init: %w", err)
	}

	table := session.NewTable(cfg.MaxPeers)
	cl := closer.New()
	eng := engine.New(r, table, cl, log)

	return &Client{cfg: cfg, log: log, r: r, table: table, cl: cl, eng: eng, gsHost: host, gsPort: uint16(port)}, nil
}

func (c *Client) resolveGSHost() (net.IP, error) {
	ips, err := net.LookupIP(c.gsHost)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("resolve %q: %w", c.gsHost, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("resolve %q: no IPv4 address", c.gsHost)
}

func (c *Client) dialGS() (gs.Endpoint, error) {
	ip, err := c.resolveGSHost()
	if err != nil {
		return nil, err
	}
	return gs.DialNonblocking(ip, c.gsPort)
}

// Run dials (single-session) or listens for local connections, per spec.md
// §6: "-p <port> ... Sets multi-session" in client mode, then drives the
// reactor until it terminates.
func (c *Client) Run() int {
	if c.cfg.Port != 0 {
		return c.runRemote()
	}
	return c.runSingleSession()
}

// runSingleSession implements the original's do_client single-connection
// path: one GS dial, stdio forwarded to it, process exit(255) if the
// connect never completes.
func (c *Client) runSingleSession() int {
	ep, err := c.dialGS()
	if err != nil {
		c.log.Error("GS connect failed", logger.Fields{"error": err.Error()})
		return 255
	}

	in, err := localsink.Stdin()
	if err != nil {
		c.log.Error("stdin setup failed", logger.Fields{"error": err.Error()})
		return 255
	}
	out, err := localsink.Stdout()
	if err != nil {
		c.log.Error("stdout setup failed", logger.Fields{"error": err.Error()})
		return 255
	}

	sess := session.NewStdio(ep, in, out, c.cfg.Interactive, false)
	sess.ReceiveOnly = c.cfg.ReceiveOnly
	c.eng.OnTeardown(func(s *session.Session) {
		if !s.GSConnected() {
			c.r.Terminate(255)
			return
		}
		c.r.Terminate(0)
	})

	if err = c.eng.Register(ep.Fd(), sess); err != nil {
		c.log.Error("session setup failed", logger.Fields{"error": err.Error()})
		return 255
	}

	code := c.r.Run()
	if code < 0 {
		return 255
	}
	return code
}

// runRemote implements the original's multi-session accept loop: each
// locally accepted TCP connection gets its own GS dial, and a connect
// failure only tears down that one session instead of exiting the process.
func (c *Client) runRemote() int {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		c.log.Error("local listener socket failed", logger.Fields{"error": err.Error()})
		return 1
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		c.log.Error("local listener setsockopt failed", logger.Fields{"error": err.Error()})
		return 1
	}
	sa := &unix.SockaddrInet4{Port: int(c.cfg.Port)}
	if err = unix.Bind(fd, sa); err != nil {
		c.log.Error("local listener bind failed", logger.Fields{"error": err.Error()})
		return 1
	}
	if err = unix.Listen(fd, 128); err != nil {
		c.log.Error("local listener listen failed", logger.Fields{"error": err.Error()})
		return 1
	}
	defer unix.Close(fd)

	if err = c.r.Add(fd, func(int, bool) { c.onLocalAcceptable(fd) }, true, false); err != nil {
		c.log.Error("local listener reactor registration failed", logger.Fields{"error": err.Error()})
		return 1
	}

	c.log.Info("client listening for local connections", logger.Fields{"port": c.cfg.Port})
	code := c.r.Run()
	if code < 0 {
		return 1
	}
	return code
}

func (c *Client) onLocalAcceptable(listenFd int) {
	for {
		connFd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			c.log.Warn("local accept failed", logger.Fields{"error": err.Error()})
			return
		}

		ep, err := c.dialGS()
		if err != nil {
			c.log.Warn("GS dial failed for accepted connection", logger.Fields{"error": err.Error()})
			_ = unix.Close(connFd)
			continue
		}

		conn := localsink.WrapInbound(connFd)
		sess := session.NewOutbound(ep, conn, true, false)
		sess.ReceiveOnly = c.cfg.ReceiveOnly
		if err = c.eng.Register(ep.Fd(), sess); err != nil {
			c.log.Warn("session rejected", logger.Fields{"error": err.Error()})
			_ = sess.Close()
		}
	}
}
