package executil

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned (wrapped) when a command outlived its timeout and
// its process tree was torn down.
var ErrTimeout = errors.New("command timed out")

// ExitError is returned when a command ran to completion with a non-zero
// exit code.
type ExitError struct {
	Code   int
	Output string
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// SpawnError is returned when the executable could not be launched at all.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IsTimeout reports whether err came from a command that timed out.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
