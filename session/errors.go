package session

import (
	"errors"
	"fmt"

	"github.com/opd-ai/rtspclient/limits"
	"github.com/opd-ai/rtspclient/rtsp"
)

// ErrorKind classifies a failure reported to a Listener.
type ErrorKind int

const (
	// ErrorConnection means the control connection could not be established.
	ErrorConnection ErrorKind = iota + 1
	// ErrorProtocol means the server answered with a missing or non-success status.
	ErrorProtocol
	// ErrorTransport means a control or media socket operation failed.
	ErrorTransport
	// ErrorPacket means a received datagram could not be decoded.
	ErrorPacket
	// ErrorInvalidState means the command is not allowed in the current state.
	ErrorInvalidState
	// ErrorClosed means the engine has been closed.
	ErrorClosed
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ErrorConnection:
		return "connection"
	case ErrorProtocol:
		return "protocol"
	case ErrorTransport:
		return "transport"
	case ErrorPacket:
		return "packet"
	case ErrorInvalidState:
		return "invalid-state"
	case ErrorClosed:
		return "closed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

var (
	// ErrInvalidState indicates a command issued in a state that does not allow it.
	ErrInvalidState = errors.New("invalid session state")

	// ErrClosed indicates the engine has been closed.
	ErrClosed = errors.New("session closed")

	// ErrNoMedia indicates PLAY was requested without an open media socket.
	ErrNoMedia = errors.New("media socket not open")
)

// Error is the error type returned by Engine commands.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err under op, deriving its kind from the underlying cause.
func newError(op string, err error) *Error {
	return &Error{Kind: classify(err), Op: op, Err: err}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNoMedia):
		return ErrorInvalidState
	case errors.Is(err, ErrClosed), errors.Is(err, rtsp.ErrClosed):
		return ErrorClosed
	case errors.Is(err, rtsp.ErrConnection):
		return ErrorConnection
	case errors.Is(err, rtsp.ErrNoStatusLine),
		errors.Is(err, rtsp.ErrMalformedStatus),
		errors.Is(err, rtsp.ErrUnexpectedStatus),
		errors.Is(err, limits.ErrLineTooLong):
		return ErrorProtocol
	case errors.Is(err, rtsp.ErrUnusable):
		return ErrorTransport
	default:
		return ErrorTransport
	}
}
