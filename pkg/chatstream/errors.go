package chatstream

import (
	"errors"
	"fmt"
)

// ErrCanceled reports that the caller abandoned a stream. It is not a failure:
// the last snapshot already returned is final. Errors matching ErrCanceled
// also match the context error that caused them.
var ErrCanceled = errors.New("chat stream canceled")

// ErrBusy is returned by Transcript.Begin while another send is in flight.
var ErrBusy = errors.New("a chat stream is already active")

// TransportError is returned when a stream cannot be started: the request
// failed, the endpoint answered with a non-2xx status, or the response carried
// no body. No snapshot has been produced when it is returned.
type TransportError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the error reported by the endpoint, if any.
	Message string

	// Err is the underlying transport error, if any.
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("chat transport: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("chat transport: status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("chat transport: status %d", e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError describes a data line whose payload could not be parsed. It is
// only ever logged: decoding recovers by waiting for more bytes.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding stream line %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}
