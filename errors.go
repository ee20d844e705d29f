package tsnego

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tsnego/model"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotIndexable is matched by every *StructuralError.
	ErrNotIndexable = model.ErrNotIndexable
)

// ConfigError reports a parameter that cannot be used, including inputs
// whose working memory exceeds the addressable or configured limit.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Field string
	Value any
	cause error
}

func (e *ConfigError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid configuration: %s=%v: %v", e.Field, e.Value, e.cause)
	}
	return fmt.Sprintf("invalid configuration: %s=%v", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func configError(field string, value any, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Value: value, cause: fmt.Errorf(format, args...)}
}

// StructuralError reports a relation that cannot provide a stable,
// contiguous offset for each item. Offset is -1 when the failure is not
// tied to a single item.
//
// The original underlying error can be accessed via errors.Unwrap and
// always matches ErrNotIndexable.
type StructuralError struct {
	Offset int
	cause  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural precondition violated: %v", e.cause)
}

func (e *StructuralError) Unwrap() error { return e.cause }

func structuralError(err error) *StructuralError {
	se := &StructuralError{Offset: -1, cause: err}
	var oe *model.OffsetError
	if errors.As(err, &oe) {
		se.Offset = oe.Offset
	}
	if !errors.Is(err, model.ErrNotIndexable) {
		se.cause = fmt.Errorf("%w: %w", model.ErrNotIndexable, err)
	}
	return se
}
