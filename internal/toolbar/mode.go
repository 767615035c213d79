// Package toolbar derives which debugger commands are currently enabled.
//
// The enabled set is a pure function of the session status. Nothing is
// stored here; callers recompute the mode on every status change.
package toolbar

import (
	"strings"

	"github.com/dshills/asmstudio/internal/status"
)

// Command identifies a toolbar command.
type Command int

const (
	CommandRun Command = iota
	CommandDebug
	CommandContinue
	CommandStep
	CommandStop
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandRun:
		return "run"
	case CommandDebug:
		return "debug"
	case CommandContinue:
		return "continue"
	case CommandStep:
		return "step"
	case CommandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Mode is the set of enabled commands.
type Mode struct {
	Run      bool
	Debug    bool
	Continue bool
	Step     bool
	Stop     bool
}

var (
	inactiveMode = Mode{Run: true, Debug: true}
	runningMode  = Mode{Stop: true}
	pausedMode   = Mode{Continue: true, Step: true, Stop: true}
)

// ModeFor returns the enabled command set for a status.
//
// Inactive and End enable run/debug. While ticking only stop is enabled.
// Breakpoint and AwaitingInput enable continue, step and stop.
func ModeFor(s status.Status) Mode {
	switch {
	case s.Ticking():
		return runningMode
	case s.Paused():
		return pausedMode
	default:
		return inactiveMode
	}
}

// Enabled reports whether the command is enabled in this mode.
func (m Mode) Enabled(c Command) bool {
	switch c {
	case CommandRun:
		return m.Run
	case CommandDebug:
		return m.Debug
	case CommandContinue:
		return m.Continue
	case CommandStep:
		return m.Step
	case CommandStop:
		return m.Stop
	default:
		return false
	}
}

// Allows is shorthand for ModeFor(s).Enabled(c).
func Allows(s status.Status, c Command) bool {
	return ModeFor(s).Enabled(c)
}

// String lists the enabled commands, e.g. "continue,step,stop".
func (m Mode) String() string {
	var enabled []string
	for _, c := range []Command{CommandRun, CommandDebug, CommandContinue, CommandStep, CommandStop} {
		if m.Enabled(c) {
			enabled = append(enabled, c.String())
		}
	}
	return strings.Join(enabled, ",")
}
