// Package config holds the application settings.
//
// Settings come from, in increasing precedence: built-in defaults, a TOML
// file, ASMSTUDIO_* environment variables, and command-line flags (applied
// by the caller).
package config

import (
	"errors"
	"strings"

	"github.com/dshills/asmstudio/internal/bridge"
)

// DefaultStateFile is the breakpoint persistence file, relative to the
// workspace root.
const DefaultStateFile = ".asmstudio/breakpoints.yaml"

// Config is the complete configuration.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Display   DisplayConfig   `toml:"display"`
	Logging   LoggingConfig   `toml:"logging"`
	Workspace WorkspaceConfig `toml:"workspace"`
}

// EngineConfig selects how the execution engine is reached. Address, when
// set, wins over Command.
type EngineConfig struct {
	// Command is spawned and spoken to over its stdin and stdout.
	Command string   `toml:"command"`
	Args    []string `toml:"args"`

	// Address is a host:port where a running engine listens.
	Address string `toml:"address"`
}

// DisplayConfig holds the initial display formats.
type DisplayConfig struct {
	RegisterFormat string `toml:"register_format"`
	MemoryFormat   string `toml:"memory_format"`
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// WorkspaceConfig configures workspace handling.
type WorkspaceConfig struct {
	// StateFile stores breakpoints of closed files. Relative paths are
	// resolved against the workspace root.
	StateFile string `toml:"state_file"`

	// Watch keeps the file index current with a file system watcher.
	Watch bool `toml:"watch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Command: "asm-engine",
		},
		Display: DisplayConfig{
			RegisterFormat: string(bridge.FormatUnsigned),
			MemoryFormat:   string(bridge.FormatUnsigned),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Workspace: WorkspaceConfig{
			StateFile: DefaultStateFile,
			Watch:     true,
		},
	}
}

// Levels lists the accepted logging levels.
func Levels() []string {
	return []string{"trace", "debug", "info", "warn", "error"}
}

// RegisterFormat returns the parsed register format.
func (c Config) RegisterFormat() bridge.Format {
	f, err := bridge.ParseFormat(c.Display.RegisterFormat)
	if err != nil {
		return bridge.FormatUnsigned
	}
	return f
}

// MemoryFormat returns the parsed memory format.
func (c Config) MemoryFormat() bridge.Format {
	f, err := bridge.ParseFormat(c.Display.MemoryFormat)
	if err != nil {
		return bridge.FormatUnsigned
	}
	return f
}

// Validate checks every setting and returns all problems found.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Engine.Command) == "" && strings.TrimSpace(c.Engine.Address) == "" {
		errs = append(errs, ErrNoEngine)
	}
	if _, err := bridge.ParseFormat(c.Display.RegisterFormat); err != nil {
		errs = append(errs, &ValidationError{
			Path:    "display.register_format",
			Message: "must be one of unsigned, signed, binary, hexadecimal",
			Value:   c.Display.RegisterFormat,
		})
	}
	if _, err := bridge.ParseFormat(c.Display.MemoryFormat); err != nil {
		errs = append(errs, &ValidationError{
			Path:    "display.memory_format",
			Message: "must be one of unsigned, signed, binary, hexadecimal",
			Value:   c.Display.MemoryFormat,
		})
	}
	if !validLevel(c.Logging.Level) {
		errs = append(errs, &ValidationError{
			Path:    "logging.level",
			Message: "must be one of " + strings.Join(Levels(), ", "),
			Value:   c.Logging.Level,
		})
	}

	return errors.Join(errs...)
}

func validLevel(level string) bool {
	level = strings.ToLower(strings.TrimSpace(level))
	for _, l := range Levels() {
		if l == level {
			return true
		}
	}
	return false
}
