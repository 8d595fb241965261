package supervisor

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Run when terminated by Stop.
var ErrStopped = errors.New("supervisor: stopped")

// FatalError marks a fault the loop must not recover from. Run returns it
// to the caller, who performs the final safe-stop and exits.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("supervisor: fatal: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as unrecoverable.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
