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
	"golang.org/x/sys/unix"

	"github.com/sabouaram/gsrelay/internal/gs"
)

// rawFd is the shared non-blocking syscall plumbing behind every LocalFd
// implementation in this package.
type rawFd struct {
	fd int
}

func readRaw(fd int, buf []byte) (int, gs.Status) {
	n, err := unix.Read(fd, buf)
	if n > 0 {
		return n, gs.StatusOK
	}
	if n == 0 {
		return 0, gs.StatusEOF
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, gs.StatusAgain
	}
	return 0, gs.StatusFatal
}

func writeRaw(fd int, buf []byte) (int, gs.Status) {
	n, err := unix.Write(fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, gs.StatusAgain
	}
	if err != nil {
		return 0, gs.StatusFatal
	}
	return n, gs.StatusOK
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
