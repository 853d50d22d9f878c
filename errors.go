package videoreader

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUnsupportedFormat  = errors.New("unsupported frame format")
	ErrInvalidShape       = errors.New("invalid frame shape")
	ErrFrameSizeChanged   = errors.New("can't change video frame size")
	ErrFrameNotFound      = errors.New("frame not found")
	ErrInvalidArguments   = errors.New("invalid videoreader parameters size")
	ErrDuplicateAddress   = errors.New("buffer address already registered")
	ErrUnknownAddress     = errors.New("buffer address not registered")
	ErrExtrasMismatch     = errors.New("extras do not match requested keys")
	ErrCloseFailed        = errors.New("failed to finalize output")
	ErrClosed             = errors.New("handle closed")
	ErrEngineNotAvailable = errors.New("videoreader engine not available")
)

// EngineError carries a failure reported by the engine.
// Message is the engine's diagnostic, verbatim.
type EngineError struct {
	Op      string // open, next, set, push, close
	Path    string
	Code    int32
	Message string
	Err     error // optional sentinel, e.g. ErrCloseFailed
}

func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.Path != "" {
		return fmt.Sprintf("videoreader: %s %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("videoreader: %s: %s", e.Op, msg)
}

func (e *EngineError) Unwrap() error { return e.Err }

// contractViolation aborts the current operation. The engine broke the
// allocation protocol or the host code has a bug; neither is recoverable.
func contractViolation(err error) {
	panic(fmt.Sprintf("videoreader: contract violation: %v", err))
}
