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

package localsink

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/gsrelay/internal/gs"
)

// tcpFd is the outbound-TCP local descriptor: used for the server's fixed
// destination forward (-d/-p) and for a SOCKS-resolved target.
type tcpFd struct {
	rawFd
	connected bool
}

// DialOutbound starts a non-blocking connect to ip:port and returns a
// LocalFd whose Connect must be polled to completion on write-readiness.
func DialOutbound(ip net.IP, port uint16) (LocalFd, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], ip.To4())

	if err = unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, err
	}

	return &tcpFd{rawFd: rawFd{fd: fd}}, nil
}

// WrapInbound wraps an already-connected fd (e.g. a client's inbound TCP
// accept) as the shared fd_in/fd_out pair for a network-forward session.
func WrapInbound(fd int) LocalFd {
	return &tcpFd{rawFd: rawFd{fd: fd}, connected: true}
}

func (t *tcpFd) Fd() int { return t.fd }

func (t *tcpFd) Connect() gs.Status {
	if t.connected {
		return gs.StatusOK
	}
	errno, err := unix.GetsockoptInt(t.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return gs.StatusFatal
	}
	switch errno {
	case 0:
		t.connected = true
		return gs.StatusOK
	case int(unix.EINPROGRESS), int(unix.EALREADY):
		return gs.StatusWaiting
	default:
		return gs.StatusFatal
	}
}

func (t *tcpFd) Read(buf []byte) (int, gs.Status)  { return readRaw(t.fd, buf) }
func (t *tcpFd) Write(buf []byte) (int, gs.Status) { return writeRaw(t.fd, buf) }

func (t *tcpFd) Shutdown() gs.Status {
	if err := unix.Shutdown(t.fd, unix.SHUT_WR); err != nil {
		return gs.StatusFatal
	}
	return gs.StatusOK
}

func (t *tcpFd) IsStdio() bool { return false }

func (t *tcpFd) Close() error {
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}
