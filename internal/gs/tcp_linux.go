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

//go:build linux

package gs

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// tcpEndpoint is the concrete stand-in GS transport: a raw non-blocking TCP
// socket managed directly with syscalls (bypassing the Go runtime poller)
// so it can be registered with internal/reactor the same way the original
// registers a GS handle's fd with GS_SELECT.
type tcpEndpoint struct {
	fd        int
	connected bool
	stats     Stats
}

// DialNonblocking starts a non-blocking TCP connect to addr:port, returning
// an Endpoint whose Connect must be called until it reports something other
// than StatusWaiting.
func DialNonblocking(ip net.IP, port uint16) (Endpoint, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], ip.To4())

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, err
	}

	return &tcpEndpoint{fd: fd}, nil
}

// WrapConnected wraps an already-connected non-blocking socket fd (e.g. one
// returned by accept4, or the TCP socket behind a client's inbound
// connection) as a GS Endpoint that is immediately StatusOK.
func WrapConnected(fd int) Endpoint {
	return &tcpEndpoint{fd: fd, connected: true, stats: Stats{Connected: time.Now(), HasConnected: true}}
}

func (e *tcpEndpoint) Fd() int { return e.fd }

func (e *tcpEndpoint) Connect() Status {
	if e.connected {
		return StatusOK
	}

	errno, err := unix.GetsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return StatusFatal
	}
	switch errno {
	case 0:
		e.connected = true
		e.stats.Connected = time.Now()
		e.stats.HasConnected = true
		return StatusOK
	case int(unix.EINPROGRESS), int(unix.EALREADY):
		return StatusWaiting
	default:
		return StatusFatal
	}
}

func (e *tcpEndpoint) Read(buf []byte) (int, Status) {
	n, err := unix.Read(e.fd, buf)
	if n > 0 {
		e.stats.BytesRead += uint64(n)
		return n, StatusOK
	}
	if n == 0 {
		return 0, StatusEOF
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, StatusAgain
	}
	return 0, StatusFatal
}

func (e *tcpEndpoint) Write(buf []byte) (int, Status) {
	n, err := unix.Write(e.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, StatusAgain
	}
	if err != nil {
		return 0, StatusFatal
	}
	e.stats.BytesWritten += uint64(n)
	return n, StatusOK
}

func (e *tcpEndpoint) Shutdown() Status {
	if err := unix.Shutdown(e.fd, unix.SHUT_WR); err != nil {
		return StatusFatal
	}
	return StatusOK
}

func (e *tcpEndpoint) Heartbeat() {
	// The concrete TCP stand-in has no keepalive protocol of its own; the
	// real GS transport would send a rendezvous heartbeat here.
}

func (e *tcpEndpoint) Close() error {
	if e.fd < 0 {
		return nil
	}
	err := unix.Close(e.fd)
	e.fd = -1
	return err
}

func (e *tcpEndpoint) Stats() Stats {
	return e.stats
}
