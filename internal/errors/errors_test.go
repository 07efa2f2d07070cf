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

package errors_test

import (
	"errors"
	"fmt"
	"testing"

	relerrors "github.com/sabouaram/gsrelay/internal/errors"
)

func TestCodeErrorString(t *testing.T) {
	cases := []struct {
		code relerrors.CodeError
		want string
	}{
		{relerrors.CodeUnknown, "unknown"},
		{relerrors.CodeWouldBlock, "would-block"},
		{relerrors.CodeEOF, "eof"},
		{relerrors.CodeFatalTransport, "fatal-transport"},
		{relerrors.CodeFatalLocal, "fatal-local"},
		{relerrors.CodeSocksProtocol, "socks-protocol"},
		{relerrors.CodeListenerFatal, "listener-fatal"},
		{relerrors.CodeConnectFatal, "connect-fatal"},
		{relerrors.CodeError(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.code.String(); got != c.want {
			t.Errorf("CodeError(%d).String() = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestNewFormatsWithAndWithoutParent(t *testing.T) {
	e := relerrors.New(relerrors.CodeEOF, "stream ended", nil)
	if e.Error() != "[eof] stream ended" {
		t.Errorf("Error() = %q", e.Error())
	}

	parent := errors.New("connection reset")
	wrapped := relerrors.New(relerrors.CodeFatalTransport, "GS read failed", parent)
	if wrapped.Error() != "[fatal-transport] GS read failed: connection reset" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	e := relerrors.Newf(relerrors.CodeSocksProtocol, nil, "bad atyp %d", 7)
	if e.Error() != "[socks-protocol] bad atyp 7" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestIsWalksParentChain(t *testing.T) {
	inner := relerrors.New(relerrors.CodeEOF, "inner", nil)
	outer := relerrors.New(relerrors.CodeFatalTransport, "outer", inner)

	if !relerrors.Is(outer, relerrors.CodeFatalTransport) {
		t.Error("expected outer code to match")
	}
	if !relerrors.Is(outer, relerrors.CodeEOF) {
		t.Error("expected to find wrapped inner code")
	}
	if relerrors.Is(outer, relerrors.CodeSocksProtocol) {
		t.Error("expected no match for unrelated code")
	}
	if relerrors.Is(errors.New("plain"), relerrors.CodeEOF) {
		t.Error("expected no match for a plain error")
	}
}

func TestGetReturnsUnderlyingError(t *testing.T) {
	e := relerrors.New(relerrors.CodeWouldBlock, "retry", nil)
	wrapped := fmt.Errorf("context: %w", e)

	got, ok := relerrors.Get(wrapped)
	if !ok {
		t.Fatal("expected Get to find the wrapped Error")
	}
	if got.Code() != relerrors.CodeWouldBlock {
		t.Errorf("Code() = %v, want CodeWouldBlock", got.Code())
	}

	if _, ok := relerrors.Get(errors.New("plain")); ok {
		t.Error("expected Get to report false for a plain error")
	}
}
