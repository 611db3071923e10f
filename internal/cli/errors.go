package cli

import (
	"errors"
	"fmt"
)

// ExitError represents a command failure with a specific exit code.
//
// Commands return it instead of calling os.Exit so tests can assert on the
// code. [RunWithConfig] extracts it with [IsExitError] and [Execute] does
// the actual exit.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int
	// Err is the failure that was already reported to the user, if any.
	Err error
}

// Error returns "exit status N", matching os/exec.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying failure.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// exitWith wraps a failure that has been printed already.
func exitWith(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

// IsExitError reports whether err is, or wraps, an [ExitError] and returns
// its code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
