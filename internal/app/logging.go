package app

import (
	"io"
	"strings"

	"pkt.systems/pslog"
)

// NewLogger builds the diagnostic logger for level. Console output is used
// when console is set; otherwise lines are structured.
func NewLogger(w io.Writer, level string, console bool) pslog.Logger {
	opts := pslog.Options{Mode: pslog.ModeStructured, NoColor: true}
	if console {
		opts.Mode = pslog.ModeConsole
	}

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "warn":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		opts.MinLevel = pslog.InfoLevel
	}

	return pslog.NewWithOptions(w, opts)
}
