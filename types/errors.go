package types

import (
	"errors"
	"fmt"
)

// ConfigError reports a descriptor that cannot be executed as declared, such as
// an unbound step or a missing data provider. Configuration errors are raised
// before any execution starts.
type ConfigError struct {
	Descriptor string
	Err        error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %q: %v", e.Descriptor, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a ConfigError for the named descriptor.
func NewConfigError(descriptor string, format string, args ...any) *ConfigError {
	return &ConfigError{Descriptor: descriptor, Err: fmt.Errorf(format, args...)}
}

// IsConfigError checks if the error is or wraps a ConfigError
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return err != nil && errors.As(err, &cfgErr)
}
