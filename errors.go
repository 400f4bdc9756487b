package img2ascii

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoActiveConverter is returned by Engine.Convert before Select.
	ErrNoActiveConverter = errors.New("no active converter")

	// ErrUnknownConverter is returned for names missing from the registry.
	ErrUnknownConverter = errors.New("unknown converter")

	// ErrDuplicateConverter is returned when a name is registered twice.
	ErrDuplicateConverter = errors.New("converter already registered")
)

// InputError reports an empty pixel buffer or an option outside its valid
// range. Input errors are raised before any processing starts.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) hold for any InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func rangeError(field string, value any, lo, hi any) *InputError {
	return &InputError{
		Field:  field,
		Reason: fmt.Sprintf("%v outside [%v, %v]", value, lo, hi),
	}
}
