package pipeline

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when a referenced job does not exist.
var ErrJobNotFound = errors.New("job not found")

// InvalidStateError is returned when an action does not apply to the job's
// current status. It carries the actual status for caller diagnosis.
type InvalidStateError struct {
	JobID   int64
	Current Status
	Wanted  []Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %d is in status %q, action requires %v", e.JobID, e.Current, e.Wanted)
}

// InvalidInputError is returned for malformed or missing required fields
// before any state is touched.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// IsInvalidInput reports whether err is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var iie *InvalidInputError
	return errors.As(err, &iie)
}
