// Package errors defines the error kinds surfaced by connections and drivers.
// Errors are values: a kind, a message and an optional wrapped cause. Two
// errors match under [errors.Is] when their kinds match, so callers can tell
// a timeout apart from a protocol violation without inspecting messages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindConnectTimeout
	KindConnectFailed
	KindReadTimeout
	KindWriteTimeout
	KindProtocol
	KindPrematureClose
	KindConnectionBusy
	KindClosed
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindConnectTimeout: "connect timeout",
	KindConnectFailed:  "connect failed",
	KindReadTimeout:    "read timeout",
	KindWriteTimeout:   "write timeout",
	KindProtocol:       "protocol error",
	KindPrematureClose: "premature close",
	KindConnectionBusy: "connection busy",
	KindClosed:         "connection closed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

type Error struct {
	kind   Kind
	msg    string
	remote bool // only meaningful for KindProtocol
	error
}

func (e Error) Error() string {
	msg := "httpconn: " + e.kind.String()
	if e.msg != "" {
		msg += ": " + e.msg
	}
	if e.error != nil {
		msg += ", error: " + e.error.Error()
	}
	return msg
}

func (e Error) Kind() Kind { return e.kind }

// Remote reports whether a protocol error was caused by the peer.
func (e Error) Remote() bool { return e.remote }

func (e Error) Wrap(err error) Error {
	if err == nil {
		return e
	}
	e.error = err
	return e
}

func (e Error) Unwrap() error {
	return e.error
}

func (e Error) Is(err error) bool {
	if err, ok := err.(Error); ok {
		return e.kind == err.kind
	}
	return false
}

// Timeout implements the timeout part of [net.Error].
func (e Error) Timeout() bool {
	switch e.kind {
	case KindConnectTimeout, KindReadTimeout, KindWriteTimeout:
		return true
	}
	return false
}

func reg(kind Kind) Error { return Error{kind: kind} }

var (
	ErrConnectTimeout = reg(KindConnectTimeout)
	ErrConnectFailed  = reg(KindConnectFailed)
	ErrReadTimeout    = reg(KindReadTimeout)
	ErrWriteTimeout   = reg(KindWriteTimeout)
	ErrProtocol       = reg(KindProtocol)
	ErrPrematureClose = reg(KindPrematureClose)
	ErrConnectionBusy = reg(KindConnectionBusy)
	ErrClosed         = reg(KindClosed)
)

// LocalProtocol is raised when we attempted something the protocol forbids,
// e.g. writing after the message completed.
func LocalProtocol(format string, args ...interface{}) Error {
	return Error{kind: KindProtocol, msg: fmt.Sprintf(format, args...)}
}

// RemoteProtocol is raised when the peer sent something illegal.
func RemoteProtocol(format string, args ...interface{}) Error {
	return Error{kind: KindProtocol, msg: fmt.Sprintf(format, args...), remote: true}
}

func PrematureClose(format string, args ...interface{}) Error {
	return Error{kind: KindPrematureClose, msg: fmt.Sprintf(format, args...), remote: true}
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// FromRead maps a transport read failure to its kind. io.EOF is returned as
// is, the peer dropping the connection otherwise counts as a premature close.
func FromRead(err error) error {
	switch {
	case err == nil, err == io.EOF:
		return err
	case errors.As(err, new(Error)):
		return err
	case IsTimeout(err):
		return ErrReadTimeout.Wrap(err)
	case isDropped(err):
		return ErrPrematureClose.Wrap(err)
	}
	return err
}

// FromWrite maps a transport write failure to its kind.
func FromWrite(err error) error {
	switch {
	case err == nil, errors.As(err, new(Error)):
		return err
	case IsTimeout(err):
		return ErrWriteTimeout.Wrap(err)
	case isDropped(err):
		return ErrClosed.Wrap(err)
	}
	return err
}

// isDropped reports errors raised once the peer or we tore the stream down.
func isDropped(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}

// FromConnect maps a dial or handshake failure to its kind.
func FromConnect(err error) error {
	switch {
	case err == nil, errors.As(err, new(Error)):
		return err
	case IsTimeout(err):
		return ErrConnectTimeout.Wrap(err)
	}
	return ErrConnectFailed.Wrap(err)
}
