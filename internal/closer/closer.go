/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

// Package closer registers io.Closer instances (GS handles, local
// descriptors) so a process-wide shutdown can close every live session
// deterministically. Unlike the teacher's mapCloser, there is no background
// polling goroutine and no periodic sweep: entries are added and removed by
// the caller (the engine, on session register and teardown), keeping
// everything on the single cooperative goroutine spec.md §5 requires.
package closer

import "io"

// Closer is a registry of io.Closer instances.
type Closer interface {
	Add(c io.Closer)
	Remove(c io.Closer)
	Len() int
	// Close closes every registered closer and clears the registry,
	// returning the first error encountered, if any.
	Close() error
}

type registry struct {
	items []io.Closer
}

// New returns an empty Closer registry.
func New() Closer {
	return &registry{}
}

func (r *registry) Add(c io.Closer) {
	if c == nil {
		return
	}
	r.items = append(r.items, c)
}

func (r *registry) Remove(c io.Closer) {
	for i, it := range r.items {
		if it == c {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return
		}
	}
}

func (r *registry) Len() int {
	return len(r.items)
}

func (r *registry) Close() error {
	var first error
	for _, c := range r.items {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.items = nil
	return first
}
