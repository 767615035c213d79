// Package status defines the debug session status state machine values.
package status

import "strings"

// Status is the session controller's current state. Exactly one status
// holds at a time.
type Status int

const (
	// Inactive is the state before any run or debug session was started.
	Inactive Status = iota
	// Running is a plain (non-debug) run in progress.
	Running
	// Continue is a debug continue loop in progress.
	Continue
	// Step is a single debug step in progress.
	Step
	// Breakpoint is a debug session paused at a breakpoint.
	Breakpoint
	// AwaitingInput is a debug session paused on a program input request.
	AwaitingInput
	// End is a finished or terminated session.
	End
)

var names = [...]string{
	Inactive:      "inactive",
	Running:       "running",
	Continue:      "continue",
	Step:          "step",
	Breakpoint:    "breakpoint",
	AwaitingInput: "awaiting_input",
	End:           "end",
}

// String returns a string representation of the status.
func (s Status) String() string {
	if s < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// All returns every defined status in declaration order.
func All() []Status {
	return []Status{Inactive, Running, Continue, Step, Breakpoint, AwaitingInput, End}
}

// Parse converts a status name into a Status. Matching is case-insensitive.
func Parse(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s {
			return Status(i), true
		}
	}
	return Inactive, false
}

// Ticking reports whether the status denotes an engine round trip that is
// currently being driven by the controller.
func (s Status) Ticking() bool {
	return s == Running || s == Continue || s == Step
}

// Paused reports whether the session is halted waiting for the user.
func (s Status) Paused() bool {
	return s == Breakpoint || s == AwaitingInput
}

// Idle reports whether no session is live.
func (s Status) Idle() bool {
	return s == Inactive || s == End
}
