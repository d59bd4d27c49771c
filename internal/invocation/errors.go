package invocation

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every *MalformedError with errors.Is.
var ErrMalformed = errors.New("malformed invocation")

// MalformedError describes why a line could not be used as an invocation.
type MalformedError struct {
	Line   string
	Reason string
}

func (e *MalformedError) Error() string {
	line := e.Line
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	if line == "" {
		return fmt.Sprintf("malformed invocation: %s", e.Reason)
	}
	return fmt.Sprintf("malformed invocation: %s: %q", e.Reason, line)
}

// Is reports true for ErrMalformed.
func (e *MalformedError) Is(target error) bool { return target == ErrMalformed }

func malformed(line, format string, args ...any) error {
	return &MalformedError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
