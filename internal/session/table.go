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

import "fmt"

// DefaultCapacity mirrors the original's FD_SETSIZE-bounded peer table; a
// relay process does not need more concurrent sessions than this in
// practice, and the fixed capacity keeps the table allocation-free after
// startup.
const DefaultCapacity = 1024

// Table is the fixed-capacity descriptor-keyed peer table spec.md §5
// describes, plus the running peer count the statistics reporter and
// capacity check both need.
type Table struct {
	capacity int
	peers    map[int]*Session
}

// NewTable returns an empty Table accepting up to capacity sessions.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{capacity: capacity, peers: make(map[int]*Session, capacity)}
}

// Count returns the current peer_count.
func (t *Table) Count() int { return len(t.peers) }

// Full reports whether the table is at capacity; callers must reject (not
// evict) a new session in this case, per spec.md §5.
func (t *Table) Full() bool { return len(t.peers) >= t.capacity }

// Add registers s under key (its GS descriptor). Returns an error if the
// table is already at capacity or key is already registered.
func (t *Table) Add(key int, s *Session) error {
	if t.Full() {
		return fmt.Errorf("session table at capacity (%d)", t.capacity)
	}
	if _, exists := t.peers[key]; exists {
		return fmt.Errorf("session table: descriptor %d already registered", key)
	}
	t.peers[key] = s
	return nil
}

// Get returns the session registered under key, if any.
func (t *Table) Get(key int) (*Session, bool) {
	s, ok := t.peers[key]
	return s, ok
}

// Remove deregisters key, decrementing peer_count.
func (t *Table) Remove(key int) {
	delete(t.peers, key)
}

// Each calls fn for every registered session. fn must not mutate the
// table; collect keys to remove and call Remove afterward.
func (t *Table) Each(fn func(key int, s *Session)) {
	for k, s := range t.peers {
		fn(k, s)
	}
}
