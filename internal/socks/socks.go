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

// Package socks implements just enough of SOCKS4 and SOCKS5 (CONNECT only)
// to serve as the black-box parser spec.md §1 describes: it consumes bytes
// incrementally and reports a target address plus completion, nothing more.
// Authentication methods other than "no auth" and SOCKS5 BIND/UDP ASSOCIATE
// are out of scope, matching the original's minimal SOCKS support.
package socks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Target is the destination a SOCKS CONNECT request resolved to.
type Target struct {
	IP       net.IP
	Port     uint16
	Hostname string // set for SOCKS5 domain-name requests; otherwise the dotted IP
}

var errProtocol = errors.New("socks: protocol violation")

type step int

const (
	stepVersion step = iota
	stepSocks5Methods
	stepSocks5Request
	stepSocks5RequestAddr
	stepSocks4Request
	stepSocks4Ident
	stepSocks4Host
	stepDone
)

// Parser is an incremental SOCKS4/5 request parser. Feed bytes to it as
// they arrive on the GS->local direction; it is never given the
// post-handshake payload, only handshake bytes, per spec.md §4.3.
type Parser struct {
	step   step
	buf    []byte
	target Target
	isV5   bool
}

// New returns a Parser ready to consume the first handshake byte.
func New() *Parser {
	return &Parser{step: stepVersion}
}

// Feed consumes as much of in as the current step needs. It returns the
// number of bytes consumed, any reply bytes that must be written back to
// the peer before more input is read (the SOCKS5 method-selection message
// and the final success/failure reply), and whether the handshake is
// complete. Target is only valid once done is true.
func (p *Parser) Feed(in []byte) (consumed int, reply []byte, done bool, err error) {
	for len(in) > 0 && p.step != stepDone {
		switch p.step {
		case stepVersion:
			switch in[0] {
			case 0x05:
				p.isV5 = true
				p.step = stepSocks5Methods
				p.buf = nil
			case 0x04:
				p.isV5 = false
				p.step = stepSocks4Request
				p.buf = nil
			default:
				return consumed, reply, false, errProtocol
			}
			in = in[1:]
			consumed++

		case stepSocks5Methods:
			p.buf = append(p.buf, in[0])
			in = in[1:]
			consumed++
			if len(p.buf) >= int(p.buf[0])+1 {
				// method-selection: no-auth required support only
				p.step = stepSocks5Request
				p.buf = nil
				reply = append(reply, 0x05, 0x00)
			}

		case stepSocks5Request:
			p.buf = append(p.buf, in[0])
			in = in[1:]
			consumed++
			if len(p.buf) == 3 {
				if p.buf[0] != 0x05 || p.buf[1] != 0x01 { // version, CONNECT only
					return consumed, reply, false, errProtocol
				}
				p.step = stepSocks5RequestAddr
				p.buf = nil // feedSocks5Addr starts from the ATYP byte
			}

		case stepSocks5RequestAddr:
			n, r, err := p.feedSocks5Addr(in)
			consumed += n
			in = in[n:]
			if err != nil {
				return consumed, reply, false, err
			}
			if r {
				p.step = stepDone
				reply = append(reply, socks5SuccessReply(p.target)...)
			}

		case stepSocks4Request:
			p.buf = append(p.buf, in[0])
			in = in[1:]
			consumed++
			if len(p.buf) == 7 {
				if p.buf[0] != 0x01 { // CONNECT only
					return consumed, reply, false, errProtocol
				}
				p.target.Port = binary.BigEndian.Uint16(p.buf[1:3])
				p.target.IP = net.IPv4(p.buf[3], p.buf[4], p.buf[5], p.buf[6])
				p.target.Hostname = p.target.IP.String()
				p.step = stepSocks4Ident
			}

		case stepSocks4Ident:
			// Consume the NUL-terminated userid field; we don't use it.
			consumed++
			b := in[0]
			in = in[1:]
			if b == 0 {
				if p.target.IP.Equal(net.IPv4(0, 0, 0, 1)) || (p.target.IP[12] == 0 && p.target.IP[13] == 0 && p.target.IP[14] == 0 && p.target.IP[15] != 0) {
					p.step = stepSocks4Host
					p.buf = nil
				} else {
					p.step = stepDone
					reply = append(reply, socks4SuccessReply()...)
				}
			}

		case stepSocks4Host:
			b := in[0]
			in = in[1:]
			consumed++
			if b == 0 {
				p.target.Hostname = string(p.buf)
				p.step = stepDone
				reply = append(reply, socks4SuccessReply()...)
			} else {
				p.buf = append(p.buf, b)
			}
		}
	}

	return consumed, reply, p.step == stepDone, nil
}

// Target returns the resolved destination. Only meaningful once Feed has
// reported done.
func (p *Parser) Target() Target {
	return p.target
}

func (p *Parser) feedSocks5Addr(in []byte) (consumed int, done bool, err error) {
	if len(p.buf) == 0 {
		p.buf = append(p.buf, in[0])
		in = in[1:]
		consumed++
		if len(in) == 0 {
			return consumed, false, nil
		}
	}

	atyp := p.buf[0]
	switch atyp {
	case 0x01: // IPv4
		need := 4 + 2 - (len(p.buf) - 1)
		n := take(&p.buf, in, need)
		consumed += n
		if len(p.buf)-1 == 6 {
			p.target.IP = net.IPv4(p.buf[1], p.buf[2], p.buf[3], p.buf[4])
			p.target.Port = binary.BigEndian.Uint16(p.buf[5:7])
			p.target.Hostname = p.target.IP.String()
			return consumed, true, nil
		}
	case 0x03: // domain name
		if len(p.buf) == 1 {
			n := take(&p.buf, in, 1)
			consumed += n
			in = in[n:]
			if len(p.buf) < 2 {
				return consumed, false, nil
			}
		}
		domLen := int(p.buf[1])
		need := domLen + 2 - (len(p.buf) - 2)
		n := take(&p.buf, in, need)
		consumed += n
		if len(p.buf)-2 == domLen+2 {
			p.target.Hostname = string(p.buf[2 : 2+domLen])
			p.target.Port = binary.BigEndian.Uint16(p.buf[2+domLen:])
			return consumed, true, nil
		}
	case 0x04: // IPv6, not supported by the original either
		return consumed, false, fmt.Errorf("%w: IPv6 unsupported", errProtocol)
	default:
		return consumed, false, errProtocol
	}

	return consumed, false, nil
}

func take(buf *[]byte, in []byte, n int) int {
	if n > len(in) {
		n = len(in)
	}
	*buf = append(*buf, in[:n]...)
	return n
}

func socks5SuccessReply(t Target) []byte {
	r := []byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	binary.BigEndian.PutUint16(r[8:10], t.Port)
	return r
}

func socks4SuccessReply() []byte {
	return []byte{0x00, 0x5a, 0, 0, 0, 0, 0, 0}
}
