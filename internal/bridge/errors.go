package bridge

import (
	"errors"
	"strings"
)

// Bridge errors.
var (
	// ErrClosed is returned for requests on a closed client.
	ErrClosed = errors.New("engine bridge closed")

	// ErrRequestFailed is returned when the engine rejects a non-tick request.
	ErrRequestFailed = errors.New("engine request failed")

	// ErrUnknownFormat is returned by ParseFormat.
	ErrUnknownFormat = errors.New("unknown display format")

	// ErrUnknownInput is returned by ParseInputRequest.
	ErrUnknownInput = errors.New("unknown input request")
)

// CompileError carries the diagnostics of a failed compile. Each message is
// one user-facing line.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	if len(e.Messages) == 0 {
		return "compile failed"
	}
	return "compile failed: " + strings.Join(e.Messages, "; ")
}

// RuntimeError is a failure the engine reported while executing a tick.
// It is distinct from transport failures, which surface as plain errors.
type RuntimeError struct {
	Message string
}

func (e *RuntimeError) Error() string {
	return "runtime error: " + e.Message
}

// IsRuntimeError reports whether err is, or wraps, a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}
