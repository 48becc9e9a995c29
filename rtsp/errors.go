package rtsp

import "errors"

var (
	// ErrConnection indicates the control connection could not be established.
	ErrConnection = errors.New("control connection failed")

	// ErrTransport indicates a read or write failure in the middle of a command.
	ErrTransport = errors.New("control transport failure")

	// ErrNoStatusLine indicates a response without a status line.
	ErrNoStatusLine = errors.New("response has no status line")

	// ErrMalformedStatus indicates a status line without a numeric status code.
	ErrMalformedStatus = errors.New("malformed status line")

	// ErrUnexpectedStatus indicates a status code other than 200.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrClosed indicates use of a closed channel.
	ErrClosed = errors.New("control channel closed")

	// ErrUnusable indicates a channel whose stream position was lost by an
	// earlier failed command. Only Close remains valid.
	ErrUnusable = errors.New("control channel unusable")
)
