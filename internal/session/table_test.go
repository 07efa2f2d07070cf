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
	"testing"

	"github.com/sabouaram/gsrelay/internal/session"
)

func TestTableAddGetRemove(t *testing.T) {
	tbl := session.NewTable(2)
	s1 := session.NewOutbound(nil, nil, true, true)

	if err := tbl.Add(1, s1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tbl.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tbl.Count())
	}

	got, ok := tbl.Get(1)
	if !ok || got != s1 {
		t.Errorf("Get(1) = %+v, %v", got, ok)
	}

	tbl.Remove(1)
	if _, ok := tbl.Get(1); ok {
		t.Error("expected session to be gone after Remove")
	}
	if tbl.Count() != 0 {
		t.Errorf("Count() = %d, want 0", tbl.Count())
	}
}

func TestTableRejectsAtCapacity(t *testing.T) {
	tbl := session.NewTable(1)
	if err := tbl.Add(1, session.NewOutbound(nil, nil, true, true)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tbl.Add(2, session.NewOutbound(nil, nil, true, true)); err == nil {
		t.Fatal("expected Add to reject a session past capacity")
	}
	if !tbl.Full() {
		t.Error("expected Full() to report true at capacity")
	}
}

func TestTableRejectsDuplicateKey(t *testing.T) {
	tbl := session.NewTable(4)
	if err := tbl.Add(1, session.NewOutbound(nil, nil, true, true)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tbl.Add(1, session.NewOutbound(nil, nil, true, true)); err == nil {
		t.Fatal("expected Add to reject a duplicate key")
	}
}

func TestTableEachVisitsEveryEntry(t *testing.T) {
	tbl := session.NewTable(4)
	_ = tbl.Add(1, session.NewOutbound(nil, nil, true, true))
	_ = tbl.Add(2, session.NewOutbound(nil, nil, true, true))

	seen := map[int]bool{}
	tbl.Each(func(key int, s *session.Session) { seen[key] = true })

	if !seen[1] || !seen[2] {
		t.Errorf("Each visited %v, want both 1 and 2", seen)
	}
}

func TestDefaultCapacityUsedWhenNonPositive(t *testing.T) {
	tbl := session.NewTable(0)
	if tbl.Full() {
		t.Fatal("a fresh default-capacity table should not be full")
	}
}
