package session

import "errors"

// Session errors.
var (
	// ErrCommandDisabled is returned when a command is not enabled in the
	// current status. Front ends treat it as a silent no-op.
	ErrCommandDisabled = errors.New("command disabled")

	// ErrNoInputPending is returned when input is submitted while the
	// program is not waiting for any.
	ErrNoInputPending = errors.New("program is not waiting for input")

	// ErrUnknownStatus is returned when the engine reports a status the
	// controller does not know.
	ErrUnknownStatus = errors.New("unknown engine status")
)
