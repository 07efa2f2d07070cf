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

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type descriptor struct {
	cb    Callback
	read  bool
	write bool
}

type epollReactor struct {
	epfd    int
	descs   map[int]*descriptor
	ticks   []TickFunc
	term    bool
	code    int
	lastTk  time.Time
	events  []unix.EpollEvent
}

// New returns a Linux epoll-backed Reactor.
func New() (Reactor, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	return &epollReactor{
		epfd:   fd,
		descs:  make(map[int]*descriptor),
		events: make([]unix.EpollEvent, 256),
		lastTk: time.Now(),
	}, nil
}

func mask(d *descriptor) uint32 {
	var m uint32
	if d.read {
		m |= unix.EPOLLIN
	}
	if d.write {
		m |= unix.EPOLLOUT
	}
	return m
}

func (r *epollReactor) Add(fd int, cb Callback, readInterest, writeInterest bool) error {
	d := &descriptor{cb: cb, read: readInterest, write: writeInterest}

	op := unix.EPOLL_CTL_ADD
	if _, exists := r.descs[fd]; exists {
		op = unix.EPOLL_CTL_MOD
	}

	ev := unix.EpollEvent{Events: mask(d), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		return err
	}

	r.descs[fd] = d
	return nil
}

func (r *epollReactor) Remove(fd int) {
	if _, ok := r.descs[fd]; !ok {
		return
	}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.descs, fd)
}

func (r *epollReactor) setInterest(fd int, read, write *bool) {
	d, ok := r.descs[fd]
	if !ok {
		return
	}
	if read != nil {
		d.read = *read
	}
	if write != nil {
		d.write = *write
	}
	ev := unix.EpollEvent{Events: mask(d), Fd: int32(fd)}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func boolPtr(b bool) *bool { return &b }

func (r *epollReactor) EnableRead(fd int)  { r.setInterest(fd, boolPtr(true), nil) }
func (r *epollReactor) DisableRead(fd int) { r.setInterest(fd, boolPtr(false), nil) }
func (r *epollReactor) EnableWrite(fd int) { r.setInterest(fd, nil, boolPtr(true)) }
func (r *epollReactor) DisableWrite(fd int) { r.setInterest(fd, nil, boolPtr(false)) }

func (r *epollReactor) ReadInterest(fd int) bool {
	if d, ok := r.descs[fd]; ok {
		return d.read
	}
	return false
}

func (r *epollReactor) WriteInterest(fd int) bool {
	if d, ok := r.descs[fd]; ok {
		return d.write
	}
	return false
}

func (r *epollReactor) OnTick(fn TickFunc) {
	r.ticks = append(r.ticks, fn)
}

func (r *epollReactor) Terminate(code int) {
	r.term = true
	r.code = code
}

func (r *epollReactor) Run() int {
	for {
		if r.term {
			return r.code
		}

		n, err := unix.EpollWait(r.epfd, r.events, int(tickPeriod/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// Fatal poll error: spec.md §4.6 treats reaching this as a bug,
			// not a recoverable condition.
			return -1
		}

		for i := 0; i < n; i++ {
			ev := r.events[i]
			fd := int(ev.Fd)
			d, ok := r.descs[fd]
			if !ok || d.cb == nil {
				continue
			}
			if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				d.cb(fd, false)
			}
			if r.term {
				return r.code
			}
			if _, stillThere := r.descs[fd]; stillThere && ev.Events&unix.EPOLLOUT != 0 {
				d.cb(fd, true)
			}
			if r.term {
				return r.code
			}
		}

		if time.Since(r.lastTk) >= tickPeriod {
			r.lastTk = time.Now()
			for _, fn := range r.ticks {
				fn()
			}
		}
	}
}
