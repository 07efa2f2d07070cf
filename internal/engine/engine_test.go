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

package engine_test

import (
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/gsrelay/internal/closer"
	"github.com/sabouaram/gsrelay/internal/engine"
	"github.com/sabouaram/gsrelay/internal/gs"
	"github.com/sabouaram/gsrelay/internal/logger"
	"github.com/sabouaram/gsrelay/internal/session"
)

func newTestEngine() (*engine.Engine, *fakeReactor) {
	r := newFakeReactor()
	table := session.NewTable(4)
	cl := closer.New()
	log := logger.New()
	log.SetOutput(io.Discard)
	return engine.New(r, table, cl, log), r
}

var _ = Describe("Engine", func() {
	var (
		e    *engine.Engine
		r    *fakeReactor
		ep   *fakeEndpoint
		loc  *fakeLocalFd
		sess *session.Session
	)

	BeforeEach(func() {
		e, r = newTestEngine()
		ep = newFakeEndpoint(10)
		loc = newFakeLocalFd(20)
	})

	Context("registration", func() {
		It("registers a fully-connected session with read interest on both sides", func() {
			sess = session.NewOutbound(ep, loc, true, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())

			Expect(r.Registered(ep.Fd())).To(BeTrue())
			Expect(r.Registered(loc.Fd())).To(BeTrue())
			Expect(r.ReadInterest(ep.Fd())).To(BeTrue())
			Expect(r.WriteInterest(ep.Fd())).To(BeFalse())
			Expect(r.ReadInterest(loc.Fd())).To(BeTrue())
			Expect(r.WriteInterest(loc.Fd())).To(BeFalse())
		})

		It("registers a still-connecting local descriptor with write interest instead of read", func() {
			sess = session.NewOutbound(ep, loc, false, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())

			Expect(r.ReadInterest(loc.Fd())).To(BeFalse())
			Expect(r.WriteInterest(loc.Fd())).To(BeTrue())
		})

		It("rejects a second session registered under the same key", func() {
			sess = session.NewOutbound(ep, loc, true, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())
			Expect(e.Register(ep.Fd(), sess)).NotTo(Succeed())
		})
	})

	Context("local -> GS happy path", func() {
		BeforeEach(func() {
			sess = session.NewOutbound(ep, loc, true, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())
		})

		It("forwards bytes read from the local descriptor straight to GS", func() {
			loc.in.Write([]byte("hello"))
			r.Fire(loc.Fd(), false)

			Expect(ep.toPeer.Len()).To(Equal(5))
			Expect(string(ep.toPeer.buf)).To(Equal("hello"))
		})
	})

	Context("GS -> local happy path", func() {
		BeforeEach(func() {
			sess = session.NewOutbound(ep, loc, true, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())
		})

		It("forwards bytes read from GS straight to the local descriptor", func() {
			ep.fromNet.Write([]byte("world"))
			r.Fire(ep.Fd(), false)

			Expect(loc.out.Len()).To(Equal(5))
			Expect(string(loc.out.buf)).To(Equal("world"))
		})
	})

	Context("half-duplex backpressure", func() {
		BeforeEach(func() {
			sess = session.NewOutbound(ep, loc, true, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())
		})

		It("disables local read interest and enables GS write interest when GS blocks", func() {
			ep.writeStatus = gs.StatusAgain
			loc.in.Write([]byte("stalled"))
			r.Fire(loc.Fd(), false)

			Expect(r.ReadInterest(loc.Fd())).To(BeFalse())
			Expect(r.WriteInterest(ep.Fd())).To(BeTrue())
			Expect(ep.toPeer.Len()).To(Equal(0))
		})

		It("restores local read interest once GS drains", func() {
			ep.writeStatus = gs.StatusAgain
			loc.in.Write([]byte("stalled"))
			r.Fire(loc.Fd(), false)

			ep.writeStatus = gs.StatusOK
			r.Fire(ep.Fd(), true)

			Expect(ep.toPeer.Len()).To(Equal(7))
			Expect(r.WriteInterest(ep.Fd())).To(BeFalse())
			Expect(r.ReadInterest(loc.Fd())).To(BeTrue())
		})
	})

	Context("EOF handling", func() {
		BeforeEach(func() {
			sess = session.NewOutbound(ep, loc, true, true)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())
		})

		It("half-closes GS and tears down immediately once the local side reaches EOF (non-stdio session)", func() {
			loc.in.SetEOF()
			r.Fire(loc.Fd(), false)

			Expect(r.Registered(ep.Fd())).To(BeFalse())
			Expect(r.Registered(loc.Fd())).To(BeFalse())
			Expect(ep.closed).To(BeTrue())
		})

		It("preserves the session on GS EOF alone when not receive-only", func() {
			ep.fromNet.SetEOF()
			r.Fire(ep.Fd(), false)

			Expect(r.Registered(ep.Fd())).To(BeTrue())
			Expect(r.Registered(loc.Fd())).To(BeTrue())
			Expect(loc.closed).To(BeFalse())
		})

		It("tears down once the local side also reaches EOF after GS already has", func() {
			ep.fromNet.SetEOF()
			r.Fire(ep.Fd(), false)

			loc.in.SetEOF()
			r.Fire(loc.Fd(), false)

			Expect(r.Registered(ep.Fd())).To(BeFalse())
			Expect(r.Registered(loc.Fd())).To(BeFalse())
		})

		It("tears down immediately on GS EOF in receive-only mode, without waiting", func() {
			sess.ReceiveOnly = true
			ep.fromNet.SetEOF()
			r.Fire(ep.Fd(), false)

			Expect(r.Registered(ep.Fd())).To(BeFalse())
			Expect(r.Registered(loc.Fd())).To(BeFalse())
			Expect(loc.closed).To(BeTrue())
		})
	})

	Context("connect completion", func() {
		It("flushes buffered local bytes once a still-connecting GS endpoint finishes connecting", func() {
			ep.connectStatus = gs.StatusWaiting
			sess = session.NewOutbound(ep, loc, true, false)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())

			loc.in.Write([]byte("queued"))
			r.Fire(loc.Fd(), false)
			Expect(ep.toPeer.Len()).To(Equal(0), "nothing should reach GS before it finishes connecting")

			ep.connectStatus = gs.StatusOK
			r.Fire(ep.Fd(), true)

			Expect(r.ReadInterest(ep.Fd())).To(BeTrue())
			Expect(r.WriteInterest(ep.Fd())).To(BeFalse())
			Expect(ep.toPeer.Len()).To(Equal(6))
		})

		It("tears down on a fatal GS connect failure", func() {
			ep.connectStatus = gs.StatusFatal
			sess = session.NewOutbound(ep, loc, true, false)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())

			r.Fire(ep.Fd(), true)

			Expect(r.Registered(ep.Fd())).To(BeFalse())
		})
	})

	Context("SOCKS handshake", func() {
		It("replies to the method-negotiation step without completing the handshake", func() {
			sess = session.NewSocksAccept(ep)
			Expect(e.Register(ep.Fd(), sess)).To(Succeed())

			ep.fromNet.Write([]byte{0x05, 0x01, 0x00})
			r.Fire(ep.Fd(), false)

			Expect(ep.toPeer.Len()).To(Equal(2))
			Expect(ep.toPeer.buf).To(Equal([]byte{0x05, 0x00}))
			Expect(sess.Socks.State).To(Equal(session.SocksInit))
		})
	})
})
