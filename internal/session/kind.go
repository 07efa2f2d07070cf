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

// Kind replaces the original's is_stdin_forward/is_app_forward/
// is_network_forward flag soup with a single tagged variant, per
// spec.md §9.
type Kind int

const (
	// KindStdio forwards to the process's own stdin/stdout.
	KindStdio Kind = iota
	// KindSubprocess forwards to a spawned command's stdin/stdout.
	KindSubprocess
	// KindOutboundTCP forwards to a fixed destination address.
	KindOutboundTCP
	// KindSocks forwards to a SOCKS4/5-resolved destination.
	KindSocks
)

func (k Kind) String() string {
	switch k {
	case KindStdio:
		return "stdio"
	case KindSubprocess:
		return "subprocess"
	case KindOutboundTCP:
		return "outbound-tcp"
	case KindSocks:
		return "socks"
	default:
		return "unknown"
	}
}

// SocksState is the SOCKS sub-state machine nested inside a KindSocks
// session, per spec.md §3 and §4.2.
type SocksState int

const (
	// SocksInit buffers bytes and hands them to the parser until it yields a target.
	SocksInit SocksState = iota
	// SocksConnecting means the target is known and an outbound connect is in progress.
	SocksConnecting
	// SocksConnected means bytes flow end to end.
	SocksConnected
)
