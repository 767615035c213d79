package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ASMSTUDIO_"

// Load reads the TOML file at path on top of the defaults. A missing file
// is not an error. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := Decode(path, data, &cfg); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Decode parses TOML data into cfg. Keys absent from data keep the values
// already in cfg. path is used only for error messages.
func Decode(path string, data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(cfg); err != nil {
		return wrapTOMLError(path, err)
	}
	return nil
}

func wrapTOMLError(path string, err error) error {
	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		row, _ := decErr.Position()
		return &ParseError{Path: path, Line: row, Reason: decErr.Error(), Err: err}
	}

	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return &ParseError{
			Path:   path,
			Reason: "unknown setting: " + strings.TrimSpace(strictErr.String()),
			Err:    err,
		}
	}

	return &ParseError{Path: path, Reason: err.Error(), Err: err}
}

// envBinding maps one environment variable to a setter.
type envBinding struct {
	name string
	set  func(c *Config, value string) error
}

var envBindings = []envBinding{
	{"ENGINE_COMMAND", func(c *Config, v string) error { c.Engine.Command = v; return nil }},
	{"ENGINE_ARGS", func(c *Config, v string) error { c.Engine.Args = strings.Fields(v); return nil }},
	{"ENGINE_ADDRESS", func(c *Config, v string) error { c.Engine.Address = v; return nil }},
	{"REGISTER_FORMAT", func(c *Config, v string) error { c.Display.RegisterFormat = v; return nil }},
	{"MEMORY_FORMAT", func(c *Config, v string) error { c.Display.MemoryFormat = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"STATE_FILE", func(c *Config, v string) error { c.Workspace.StateFile = v; return nil }},
	{"WATCH", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ValidationError{Path: "workspace.watch", Message: "must be a boolean", Value: v}
		}
		c.Workspace.Watch = b
		return nil
	}},
}

// ApplyEnv overrides settings from ASMSTUDIO_* variables found through
// lookup. os.LookupEnv is used when lookup is nil.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var errs []error
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, b.name, err))
		}
	}
	return errors.Join(errs...)
}

// EnvNames lists the recognised environment variables.
func EnvNames() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = EnvPrefix + b.name
	}
	return names
}
