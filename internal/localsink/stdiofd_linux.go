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

	"github.com/sabouaram/gsrelay/internal/gs"
)

type stdioFd struct {
	rawFd
}

// Stdin returns the process's stdin as a non-blocking LocalFd, used for the
// client's single-session mode and the server's stdin/stdout forward.
func Stdin() (LocalFd, error) {
	return wrapStdio(int(os.Stdin.Fd()))
}

// Stdout returns the process's stdout as a non-blocking LocalFd.
func Stdout() (LocalFd, error) {
	return wrapStdio(int(os.Stdout.Fd()))
}

func wrapStdio(fd int) (LocalFd, error) {
	if err := setNonblock(fd); err != nil {
		return nil, err
	}
	return &stdioFd{rawFd: rawFd{fd: fd}}, nil
}

func (s *stdioFd) Fd() int                        { return s.fd }
func (s *stdioFd) Connect() gs.Status              { return gs.StatusOK }
func (s *stdioFd) Read(buf []byte) (int, gs.Status)  { return readRaw(s.fd, buf) }
func (s *stdioFd) Write(buf []byte) (int, gs.Status) { return writeRaw(s.fd, buf) }
func (s *stdioFd) Shutdown() gs.Status             { return gs.StatusOK }
func (s *stdioFd) IsStdio() bool                   { return true }
func (s *stdioFd) Close() error                    { return nil }
