package exiftool

import (
	"errors"
	"fmt"
)

// Sentinel errors for exiftool operations.
var (
	// ErrNotRunning indicates a command was issued to a client whose
	// exiftool process has not been started or has been terminated.
	ErrNotRunning = errors.New("exiftool not running")

	// ErrMalformedResponse indicates the output of a JSON batch could not be
	// decoded as an array of objects.
	ErrMalformedResponse = errors.New("malformed exiftool response")

	// ErrNotImplemented indicates a metadata mutation was requested.
	// Writing metadata back to files is not supported yet.
	ErrNotImplemented = errors.New("metadata editing not supported yet")

	// ErrProcessExited indicates the exiftool process exited before
	// finishing a response.
	ErrProcessExited = errors.New("exiftool process exited")

	// ErrInvalidToken indicates a batch argument cannot be framed, for
	// example because it contains a line break.
	ErrInvalidToken = errors.New("invalid batch argument")

	// ErrInvalidConfig indicates the client configuration is unusable.
	ErrInvalidConfig = errors.New("invalid config")
)

// Error wraps exiftool errors with the operation that failed.
type Error struct {
	Op  string // Operation that failed ("start", "execute", "execute_json", "set")
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("exiftool %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new operation error.
func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// IsNotRunning reports whether err was caused by using a stopped client.
func IsNotRunning(err error) bool {
	return errors.Is(err, ErrNotRunning)
}

// IsNotImplemented reports whether err was caused by an unsupported
// mutation of a metadata view.
func IsNotImplemented(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}
