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

package localsink

// EscapeWatcher recognises the interactive "~." disconnect sequence on a
// byte stream read from a local terminal. It only arms at the start of a
// line, matching a user's expectation that a literal "~." typed mid-command
// does not trigger a disconnect.
type EscapeWatcher struct {
	atLineStart bool
	sawTilde    bool
}

// NewEscapeWatcher returns a watcher armed as if a newline had just been seen,
// so a "~." typed as the very first bytes of a session is honoured.
func NewEscapeWatcher() *EscapeWatcher {
	return &EscapeWatcher{atLineStart: true}
}

// Scan feeds newly read bytes through the watcher and reports whether the
// escape sequence completed within them.
func (w *EscapeWatcher) Scan(buf []byte) (triggered bool) {
	for _, b := range buf {
		switch {
		case w.sawTilde && b == '.':
			return true
		case b == '~' && w.atLineStart:
			w.sawTilde = true
			w.atLineStart = false
			continue
		case b == '\n' || b == '\r':
			w.atLineStart = true
			w.sawTilde = false
			continue
		default:
			w.atLineStart = false
			w.sawTilde = false
		}
	}
	return false
}
