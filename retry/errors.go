package retry

import (
	"fmt"
	"strings"
)

// MultiError every error of a failed retry sequence
type MultiError struct {
	Errors   []error
	Attempts int
}

// Error the last error
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "retry failed: no errors"
	}
	return e.Errors[len(e.Errors)-1].Error()
}

// Unwrap the last error
func (e *MultiError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// String every attempt
func (e *MultiError) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "retry failed after %d attempts:", e.Attempts)
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  attempt %d: %v", i+1, err)
	}
	return b.String()
}
