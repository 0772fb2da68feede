package ratelimit

import (
	"errors"
	"fmt"
)

// ErrInvalidConfiguration is returned when a limiter is constructed with
// parameters it cannot honour.
var ErrInvalidConfiguration = errors.New("invalid rate limiter configuration")

// ConfigurationError describes which construction parameter was rejected.
type ConfigurationError struct {
	Field  string
	Value  int64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s %s (got %d)", ErrInvalidConfiguration, e.Field, e.Reason, e.Value)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}
