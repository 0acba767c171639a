// Package config loads YAML configuration files with environment variable
// expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves.
type Validator interface {
	Validate() error
}

type loadOptions struct {
	optional bool
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// Optional makes a missing file leave target at its defaults. Defaults are
// still validated.
func Optional() LoadOption {
	return func(o *loadOptions) { o.optional = true }
}

// Load reads filename into target. ${VAR} references are expanded from the
// environment before parsing. The result is validated when target
// implements Validator.
func Load[T any](filename string, target *T, opts ...LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist) && o.optional:
		data = nil
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
