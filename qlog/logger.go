/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package qlog is the out-of-core observer/qlog/stats dispatch layer
// (spec §1, "Observer/qlog dispatch"): a narrative Logger interface in
// the shape of the teacher's logger.Logger (functional-options
// construction, a fluent per-entry field builder, logrus-backed), an
// opt-in observer event bus gated by a precomputed bitmask so the hot
// packet-processing path can skip fan-out entirely when nothing has
// subscribed, and a Prometheus stats sink.
package qlog

import (
	"github.com/sirupsen/logrus"
)

// Level mirrors the teacher's logger/level.Level ordering closely enough
// for this package's narrower narration needs (debug/info/warn/error),
// without importing the teacher's package wholesale.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Entry is the fluent per-message field builder, mirroring the shape of
// the teacher's logger/entry.Entry (FieldAdd/.../Log), trimmed to the
// fields a connection actually narrates with.
type Entry interface {
	Field(key string, val interface{}) Entry
	Log()
}

// Logger is the narration surface conn accepts via its WithLogger
// functional option, never
// importing logrus directly — exactly how the teacher's consumers depend
// on logger.Logger rather than *logrus.Logger.
type Logger interface {
	Entry(lvl Level, msg string) Entry
}

type logrusLogger struct {
	backing logrus.FieldLogger
}

// NewLogrusLogger wraps a logrus.FieldLogger as a Logger, for passing to
// conn's WithLogger; conn itself defaults to NopLogger (teacher's logger/entry.go wires
// logrus under its own Logger the same way).
func NewLogrusLogger(backing logrus.FieldLogger) Logger {
	if backing == nil {
		backing = logrus.StandardLogger()
	}
	return &logrusLogger{backing: backing}
}

func (l *logrusLogger) Entry(lvl Level, msg string) Entry {
	return &logrusEntry{backing: l.backing, level: lvl, msg: msg, fields: logrus.Fields{}}
}

type logrusEntry struct {
	backing logrus.FieldLogger
	level   Level
	msg     string
	fields  logrus.Fields
}

func (e *logrusEntry) Field(key string, val interface{}) Entry {
	e.fields[key] = val
	return e
}

func (e *logrusEntry) Log() {
	e.backing.WithFields(e.fields).Log(e.level.logrusLevel(), e.msg)
}

// NopLogger discards every entry; the default when no WithLogger option
// is supplied, so narration is opt-in rather than mandatory stderr noise.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Entry(Level, string) Entry { return nopEntry{} }

type nopEntry struct{}

func (nopEntry) Field(string, interface{}) Entry { return nopEntry{} }
func (nopEntry) Log()                            {}
