/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

// Package libctx provides a generic, typed context-scoped map used to carry
// process-wide cancellation and small bits of shared state (the daemon
// restart counter) without resorting to globals.
package libctx

import (
	"context"
	"sync"
)

// FuncContext returns the parent context to derive from.
type FuncContext func() context.Context

// Config is a context bound to a typed key/value map that is cleared when
// the context is cancelled.
type Config[T comparable] interface {
	context.Context

	Load(key T) (val interface{}, ok bool)
	Store(key T, val interface{})
	Delete(key T)
	Cancel()
}

type configContext[T comparable] struct {
	context.Context
	cancel context.CancelFunc
	m      sync.Map
}

// New derives a cancellable Config from fct (or context.Background if nil).
func New[T comparable](fct FuncContext) Config[T] {
	if fct == nil {
		fct = context.Background
	}

	ctx, cancel := context.WithCancel(fct())
	return &configContext[T]{Context: ctx, cancel: cancel}
}

func (c *configContext[T]) Load(key T) (interface{}, bool) {
	return c.m.Load(key)
}

func (c *configContext[T]) Store(key T, val interface{}) {
	c.m.Store(key, val)
}

func (c *configContext[T]) Delete(key T) {
	c.m.Delete(key)
}

func (c *configContext[T]) Cancel() {
	c.cancel()
	c.m.Range(func(key, _ interface{}) bool {
		c.m.Delete(key)
		return true
	})
}
