package triage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references an issue that does not exist.
var ErrNotFound = errors.New("issue not found")

// InputError reports a malformed or incomplete request. Its message is safe
// to show to the client.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func invalidInput(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err carries an InputError.
func IsInputError(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}
