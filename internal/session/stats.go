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

package session

import (
	"fmt"
	"time"

	"github.com/sabouaram/gsrelay/internal/logger"
)

// humanBytes renders n the way the original's stats line does: plain
// bytes below 1024, otherwise KiB/MiB/GiB (and up) with one decimal place.
func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Report summarises one session's lifetime for the teardown log line
// (spec.md §8): elapsed wall time since the session was marked connected,
// bytes moved in each direction, and average throughput.
type Report struct {
	Kind      Kind
	Elapsed   time.Duration
	BytesRead uint64
	BytesSent uint64
	Dest      string // HostPort-colourised when the kind resolved a hostname
}

// String renders a report line in the teacher's single-line summary style.
func (r Report) String() string {
	ms := r.Elapsed.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	totalKiB := float64(r.BytesRead+r.BytesSent) / 1024
	throughput := totalKiB / (float64(ms) / 1000)

	if r.Dest != "" {
		return fmt.Sprintf("%s closed after %s: %s in / %s out (%.1f KiB/s) -> %s",
			r.Kind, r.Elapsed.Round(time.Millisecond), humanBytes(r.BytesRead), humanBytes(r.BytesSent), throughput, r.Dest)
	}
	return fmt.Sprintf("%s closed after %s: %s in / %s out (%.1f KiB/s)",
		r.Kind, r.Elapsed.Round(time.Millisecond), humanBytes(r.BytesRead), humanBytes(r.BytesSent), throughput)
}

// BuildReport assembles a Report for s at teardown time now. It returns
// ok=false if s never finished connecting, matching the original's rule
// that only sessions with tv_connected set print statistics.
func (s *Session) BuildReport(now time.Time) (Report, bool) {
	connectedAt, ok := s.ConnectedAt()
	if !ok || s.GS == nil {
		return Report{}, false
	}

	st := s.GS.Stats()
	return Report{
		Kind:      s.Kind,
		Elapsed:   now.Sub(connectedAt),
		BytesRead: st.BytesRead,
		BytesSent: st.BytesWritten,
		Dest:      s.Dest(),
	}, true
}

// Dest renders the session's destination, colourised by port class, for a
// KindSocks session that resolved a hostname; it is empty for every other
// session.
func (s *Session) Dest() string {
	if s.Kind == KindSocks && s.Socks.DstHostname != "" {
		return logger.HostPort(s.Socks.DstHostname, s.Socks.DstPort)
	}
	return ""
}
