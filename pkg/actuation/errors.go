package actuation

import (
	"errors"
	"fmt"
)

// Sentinel errors for common actuation failures.
var (
	// ErrUnavailable is returned when the motor daemon cannot be reached.
	ErrUnavailable = errors.New("actuation: motor daemon unavailable")

	// ErrRejected is returned when the daemon refuses a command.
	ErrRejected = errors.New("actuation: command rejected")
)

// CommandError wraps a failed actuation command with context.
type CommandError struct {
	Command string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("actuation [%s]: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

func wrap(command string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Err: err}
}
