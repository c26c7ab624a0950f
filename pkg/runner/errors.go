package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrNilHandle is returned by New without a collection handle
	ErrNilHandle = errors.New("runner: nil collection handle")

	// ErrNotIdle is returned when Run is called outside the Idle state
	ErrNotIdle = errors.New("runner: not idle")
)

// RunError reports the operation that stopped a run. Kind is empty when
// the operation could not be built.
type RunError struct {
	Index int
	Kind  string
	Err   error
}

func (e *RunError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("operation %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("operation %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
