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
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/gsrelay/internal/gs"
)

// subprocessFd forwards to a spawned command's stdin/stdout through one
// end of a socketpair, the bidirectional fd spec.md §1 says the subprocess
// launcher returns. fd_in and fd_out are the same descriptor, per
// spec.md §3.
type subprocessFd struct {
	rawFd
	cmd *exec.Cmd
}

// Spawn runs shellCmd (via "sh -c") with its stdin/stdout wired to one end
// of a new socketpair; the other end is returned as a non-blocking LocalFd.
func Spawn(shellCmd string) (LocalFd, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	parentFd, childFd := fds[0], fds[1]

	if err = setNonblock(parentFd); err != nil {
		_ = unix.Close(parentFd)
		_ = unix.Close(childFd)
		return nil, err
	}

	childFile := os.NewFile(uintptr(childFd), "gsrelay-child-sock")

	cmd := exec.Command("/bin/sh", "-c", shellCmd)
	cmd.Stdin = childFile
	cmd.Stdout = childFile
	cmd.Stderr = os.Stderr

	if err = cmd.Start(); err != nil {
		_ = childFile.Close()
		_ = unix.Close(parentFd)
		return nil, err
	}
	_ = childFile.Close()

	go func() { _ = cmd.Wait() }()

	return &subprocessFd{rawFd: rawFd{fd: parentFd}, cmd: cmd}, nil
}

func (s *subprocessFd) Fd() int                        { return s.fd }
func (s *subprocessFd) Connect() gs.Status              { return gs.StatusOK }
func (s *subprocessFd) Read(buf []byte) (int, gs.Status)  { return readRaw(s.fd, buf) }
func (s *subprocessFd) Write(buf []byte) (int, gs.Status) { return writeRaw(s.fd, buf) }

func (s *subprocessFd) Shutdown() gs.Status {
	if err := unix.Shutdown(s.fd, unix.SHUT_WR); err != nil {
		return gs.StatusFatal
	}
	return gs.StatusOK
}

func (s *subprocessFd) IsStdio() bool { return false }

func (s *subprocessFd) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
