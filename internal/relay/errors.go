package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrClientFrame marks a malformed, unknown or invalid frame. It is
	// reported to the originating connection, which stays open.
	ErrClientFrame = errors.New("client frame error")

	// ErrPersistence marks a failed store write. The message is reported
	// back to its sender and not relayed.
	ErrPersistence = errors.New("persistence error")

	// ErrTransport marks a failed send or an undecodable stream. Only the
	// affected connection is torn down.
	ErrTransport = errors.New("transport error")
)

// FrameError is an error whose text is safe to show to a client verbatim
// in an error frame.
type FrameError struct {
	Msg  string
	kind error
}

func (e *FrameError) Error() string { return e.Msg }

func (e *FrameError) Unwrap() error { return e.kind }

func clientFrameError(format string, args ...any) *FrameError {
	return &FrameError{Msg: fmt.Sprintf(format, args...), kind: ErrClientFrame}
}

func persistenceError(cause error) *FrameError {
	return &FrameError{Msg: "Failed to save message: " + cause.Error(), kind: ErrPersistence}
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
