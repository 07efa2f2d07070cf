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

// Package logger wraps logrus with the session open/close/statistics log
// lines the relay core emits, including the port-class colourisation of
// SOCKS destinations (443 blue/green, 80 blue/yellow, other blue/red).
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is a shorthand for structured log attributes.
type Fields map[string]interface{}

// Logger is the subset of logging operations the relay core depends on.
type Logger interface {
	Debug(msg string, f ...Fields)
	Info(msg string, f ...Fields)
	Warn(msg string, f ...Fields)
	Error(msg string, f ...Fields)
	WithField(key string, val interface{}) Logger
	SetQuiet(quiet bool)
	SetOutput(w io.Writer)
}

type entry struct {
	log   *logrus.Logger
	entry *logrus.Entry
	quiet *bool
}

// New returns a Logger writing to stderr at info level, matching the
// teacher's default destination for the relay's VLOG-equivalent output.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: false})
	l.SetLevel(logrus.InfoLevel)

	q := false
	return &entry{log: l, entry: logrus.NewEntry(l), quiet: &q}
}

func (e *entry) merge(f []Fields) *logrus.Entry {
	if len(f) == 0 {
		return e.entry
	}
	fl := logrus.Fields{}
	for k, v := range f[0] {
		fl[k] = v
	}
	return e.entry.WithFields(fl)
}

func (e *entry) Debug(msg string, f ...Fields) {
	if *e.quiet {
		return
	}
	e.merge(f).Debug(msg)
}

func (e *entry) Info(msg string, f ...Fields) {
	if *e.quiet {
		return
	}
	e.merge(f).Info(msg)
}

func (e *entry) Warn(msg string, f ...Fields) {
	if *e.quiet {
		return
	}
	e.merge(f).Warn(msg)
}

func (e *entry) Error(msg string, f ...Fields) {
	if *e.quiet {
		return
	}
	e.merge(f).Error(msg)
}

func (e *entry) WithField(key string, val interface{}) Logger {
	return &entry{log: e.log, entry: e.entry.WithField(key, val), quiet: e.quiet}
}

func (e *entry) SetQuiet(quiet bool) {
	*e.quiet = quiet
}

func (e *entry) SetOutput(w io.Writer) {
	e.log.SetOutput(w)
}
