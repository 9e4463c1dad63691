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

package qerr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// QuicError is the concrete error type every core package returns or closes
// a connection with. It is never thread-safe for mutation (Add/SetParent)
// but safe for concurrent reads, mirroring the contract of a general error
// package built for hierarchy and stack capture.
type QuicError struct {
	kind   Kind
	code   Code
	msg    string
	parent []*QuicError
	frame  runtime.Frame
}

// Kind returns the error family (transport, application, or local).
func (e *QuicError) Kind() Kind {
	if e == nil {
		return KindLocal
	}
	return e.kind
}

// Code returns the numeric code, interpreted according to Kind.
func (e *QuicError) Code() Code {
	if e == nil {
		return NoError
	}
	return e.code
}

// IsCode reports whether this error's own code (not a parent's) equals code.
func (e *QuicError) IsCode(code Code) bool {
	return e != nil && e.code == code
}

// HasCode reports whether this error or any parent carries code.
func (e *QuicError) HasCode(code Code) bool {
	if e == nil {
		return false
	}
	if e.IsCode(code) {
		return true
	}
	for _, p := range e.parent {
		if p.HasCode(code) {
			return true
		}
	}
	return false
}

// Error implements the standard error interface.
func (e *QuicError) Error() string {
	if e == nil {
		return ""
	}
	s := fmt.Sprintf("%s: %s", e.code.name(e.kind), e.msg)
	if len(e.parent) > 0 {
		parts := make([]string, 0, len(e.parent))
		for _, p := range e.parent {
			parts = append(parts, p.Error())
		}
		s += " (" + strings.Join(parts, "; ") + ")"
	}
	return s
}

// Message returns the error's own text, without code prefix or parents.
func (e *QuicError) Message() string {
	if e == nil {
		return ""
	}
	return e.msg
}

// Add appends parent errors to the hierarchy, wrapping plain errors as
// leaf *QuicError values so the chain stays homogeneous.
func (e *QuicError) Add(parents ...error) {
	for _, p := range parents {
		if p == nil {
			continue
		}
		if qe, ok := p.(*QuicError); ok {
			e.parent = append(e.parent, qe)
			continue
		}
		e.parent = append(e.parent, &QuicError{kind: KindLocal, msg: p.Error()})
	}
}

// SetParent replaces the parent chain with the given errors.
func (e *QuicError) SetParent(parents ...error) {
	e.parent = nil
	e.Add(parents...)
}

// Unwrap supports errors.Is / errors.As over the parent chain (Go 1.20+
// multi-error Unwrap).
func (e *QuicError) Unwrap() []error {
	if e == nil || len(e.parent) == 0 {
		return nil
	}
	res := make([]error, 0, len(e.parent))
	for _, p := range e.parent {
		res = append(res, p)
	}
	return res
}

// Is implements errors.Is: two QuicErrors match when kind and code agree.
func (e *QuicError) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	qe, ok := target.(*QuicError)
	if !ok {
		return false
	}
	return e.kind == qe.kind && e.code == qe.code
}

// GetTrace returns the file#line call site captured when the error was
// constructed, or "" if unavailable.
func (e *QuicError) GetTrace() string {
	if e == nil || e.frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s#%d", e.frame.File, e.frame.Line)
}

func newError(kind Kind, code Code, msg string, parent error) *QuicError {
	e := &QuicError{kind: kind, code: code, msg: msg}
	if parent != nil {
		e.Add(parent)
	}
	pc, file, line, ok := runtime.Caller(2)
	if ok {
		fn := runtime.FuncForPC(pc)
		name := ""
		if fn != nil {
			name = fn.Name()
		}
		e.frame = runtime.Frame{File: file, Line: line, Function: name}
	}
	return e
}

// Transport builds a transport-level QuicError (closes the connection with a
// CONNECTION_CLOSE transport-variant frame carrying code).
func Transport(code Code, msg string, parent error) *QuicError {
	return newError(KindTransport, code, msg, parent)
}

// Application builds an application-level QuicError carrying the
// application-chosen 62-bit code.
func Application(code uint64, msg string, parent error) *QuicError {
	return newError(KindApplication, Code(code), msg, parent)
}

// Local builds a local-only QuicError, never carried on the wire.
func Local(code Code, msg string, parent error) *QuicError {
	return newError(KindLocal, code, msg, parent)
}

// Convenience constructors for the transport error kinds named in the
// connection's close-state design.

func ProtocolViolation(msg string, parent error) *QuicError {
	return newError(KindTransport, ProtocolViolation, msg, parent)
}

func FrameEncodingError(msg string, parent error) *QuicError {
	return newError(KindTransport, FrameEncodingError, msg, parent)
}

func TransportParameterError(msg string, parent error) *QuicError {
	return newError(KindTransport, TransportParameterError, msg, parent)
}

func StreamStateError(msg string, parent error) *QuicError {
	return newError(KindTransport, StreamStateError, msg, parent)
}

func FlowControlError(msg string, parent error) *QuicError {
	return newError(KindTransport, FlowControlError, msg, parent)
}

func InvalidMigrationError(msg string, parent error) *QuicError {
	return newError(KindTransport, InvalidMigration, msg, parent)
}

// CryptoErrorf builds a CRYPTO_ERROR carrying the given TLS alert byte.
func CryptoErrorf(tlsAlert uint8, msg string, parent error) *QuicError {
	return newError(KindTransport, CryptoErrorCode(tlsAlert), msg, parent)
}

func NoErrorClose(msg string) *QuicError {
	return newError(KindTransport, NoError, msg, nil)
}

// Local-only convenience constructors.

func ErrIdleTimeout() *QuicError       { return newError(KindLocal, IdleTimeout, "idle timeout", nil) }
func ErrConnectionReset() *QuicError   { return newError(KindLocal, ConnectionReset, "stateless reset observed", nil) }
func ErrConnectionAbandoned(parent error) *QuicError {
	return newError(KindLocal, ConnectionAbandoned, "socket failure", parent)
}
func ErrShuttingDown() *QuicError { return newError(KindLocal, ShuttingDown, "shutting down", nil) }
func ErrStreamNotExists(id uint64) *QuicError {
	return newError(KindLocal, StreamNotExists, fmt.Sprintf("stream %d does not exist", id), nil)
}
func ErrInvalidOperation(msg string) *QuicError {
	return newError(KindLocal, InvalidOperation, msg, nil)
}
func ErrInvalidWriteCallback(msg string) *QuicError {
	return newError(KindLocal, InvalidWriteCallback, msg, nil)
}
func ErrCallbackAlreadyInstalled() *QuicError {
	return newError(KindLocal, CallbackAlreadyInstalled, "callback already installed", nil)
}
func ErrStreamClosed(id uint64) *QuicError {
	return newError(KindLocal, StreamClosed, fmt.Sprintf("stream %d is closed", id), nil)
}
func ErrConnectionClosed() *QuicError {
	return newError(KindLocal, ConnectionClosed, "connection is closed", nil)
}
func ErrKnobFrameUnsupported() *QuicError {
	return newError(KindLocal, KnobFrameUnsupported, "knob frames not negotiated", nil)
}
func ErrMigrationFailed(msg string) *QuicError {
	return newError(KindLocal, MigrationFailed, msg, nil)
}
func ErrNewVersionNegotiated() *QuicError {
	return newError(KindLocal, NewVersionNegotiated, "peer negotiated a new version", nil)
}

// Compile-time check that *QuicError implements error; errors.As can target
// *QuicError directly, so no custom As method is defined.
var _ error = (*QuicError)(nil)

// IsTimeout reports whether err is (or wraps) an idle-timeout local error.
func IsTimeout(err error) bool {
	var qe *QuicError
	return errors.As(err, &qe) && qe.kind == KindLocal && qe.code == IdleTimeout
}
