package limiter

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid limiter configuration")

	// ErrInvalidCost is returned when a call is made with a negative or
	// non-finite cost.
	ErrInvalidCost = errors.New("cost must be a finite number >= 0")

	// ErrInvalidReply is returned when the store answers with something other
	// than an (allowed, value, tier) triple.
	ErrInvalidReply = errors.New("invalid admission reply")
)

// ConfigurationError reports a limit that can never be satisfied. It is a
// programming error and is raised at construction time only.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func configError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsConfigurationError reports whether err was caused by an invalid limit.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
