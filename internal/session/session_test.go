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

package session_test

import (
	"strings"
	"testing"
	"time"

	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/session"
)

// fakeEndpoint is a minimal gs.Endpoint stand-in for exercising
// BuildReport without a real transport.
type fakeEndpoint struct {
	fd    int
	stats gs.Stats
}

func (f *fakeEndpoint) Fd() int                        { return f.fd }
func (f *fakeEndpoint) Connect() gs.Status             { return gs.StatusOK }
func (f *fakeEndpoint) Read([]byte) (int, gs.Status)   { return 0, gs.StatusAgain }
func (f *fakeEndpoint) Write([]byte) (int, gs.Status)  { return 0, gs.StatusAgain }
func (f *fakeEndpoint) Shutdown() gs.Status            { return gs.StatusOK }
func (f *fakeEndpoint) Heartbeat()                     {}
func (f *fakeEndpoint) Close() error                   { return nil }
func (f *fakeEndpoint) Stats() gs.Stats                { return f.stats }

func TestOutBufferFillAdvanceCycle(t *testing.T) {
	s := session.NewOutbound(&fakeEndpoint{fd: 1}, nil, true, true)

	buf := s.OutReadBuf()
	n := copy(buf, []byte("payload"))
	s.FillOut(n)

	if !s.OutPending() {
		t.Fatal("expected OutPending after FillOut")
	}
	if string(s.OutBuf()) != "payload" {
		t.Errorf("OutBuf() = %q", s.OutBuf())
	}

	s.AdvanceOut(3)
	if string(s.OutBuf()) != "load" {
		t.Errorf("OutBuf() after partial advance = %q", s.OutBuf())
	}

	s.AdvanceOut(4)
	if s.OutPending() {
		t.Error("expected OutPending to be false once fully advanced")
	}
}

func TestInBufferFillAdvanceCycle(t *testing.T) {
	s := session.NewOutbound(&fakeEndpoint{fd: 1}, nil, true, true)

	buf := s.InReadBuf()
	n := copy(buf, []byte("reply"))
	s.FillIn(n)

	if !s.InPending() {
		t.Fatal("expected InPending after FillIn")
	}
	s.AdvanceIn(5)
	if s.InPending() {
		t.Error("expected InPending to be false once fully advanced")
	}
}

func TestMarkConnectedIsIdempotent(t *testing.T) {
	s := session.NewOutbound(&fakeEndpoint{fd: 1}, nil, true, true)

	first := time.Now()
	s.MarkConnected(first)
	s.MarkConnected(first.Add(time.Hour))

	got, ok := s.ConnectedAt()
	if !ok {
		t.Fatal("expected ConnectedAt to report true")
	}
	if !got.Equal(first) {
		t.Errorf("ConnectedAt() = %v, want the first MarkConnected call's time", got)
	}
}

func TestBuildReportRequiresConnection(t *testing.T) {
	s := session.NewOutbound(&fakeEndpoint{fd: 1}, nil, true, true)
	if _, ok := s.BuildReport(time.Now()); ok {
		t.Fatal("expected BuildReport to fail before MarkConnected")
	}
}

func TestBuildReportAndReportString(t *testing.T) {
	ep := &fakeEndpoint{fd: 1, stats: gs.Stats{BytesRead: 2048, BytesWritten: 1024}}
	s := session.NewOutbound(ep, nil, true, true)

	connectedAt := time.Now().Add(-2 * time.Second)
	s.MarkConnected(connectedAt)

	report, ok := s.BuildReport(connectedAt.Add(2 * time.Second))
	if !ok {
		t.Fatal("expected BuildReport to succeed after MarkConnected")
	}
	if report.BytesRead != 2048 || report.BytesSent != 1024 {
		t.Errorf("report = %+v", report)
	}

	line := report.String()
	if !strings.Contains(line, "2.0KiB in") || !strings.Contains(line, "1.0KiB out") {
		t.Errorf("String() = %q", line)
	}
}

func TestDestEmptyForNonSocksSession(t *testing.T) {
	s := session.NewOutbound(&fakeEndpoint{fd: 1}, nil, true, true)
	if got := s.Dest(); got != "" {
		t.Errorf("Dest() = %q, want empty for KindOutboundTCP", got)
	}
}

func TestDestColourisedForResolvedSocksHostname(t *testing.T) {
	s := session.NewSocksAccept(&fakeEndpoint{fd: 1})
	s.Socks.DstHostname = "example.com"
	s.Socks.DstPort = 443

	got := s.Dest()
	if !strings.Contains(got, "example.com") {
		t.Errorf("Dest() = %q, want it to mention the resolved hostname", got)
	}
}

func TestIsStdioTrueOnlyForStdioFds(t *testing.T) {
	s := session.NewOutbound(&fakeEndpoint{fd: 1}, nil, true, true)
	if s.IsStdio() {
		t.Error("expected IsStdio() to be false when FdIn is nil")
	}
}
