package taskdispatch

import (
	"errors"

	"github.com/xraph/taskdispatch/middleware"
)

var (
	// Configuration errors.
	ErrInvalidConfiguration = errors.New("taskdispatch: invalid configuration")

	// Lifecycle errors.
	ErrAlreadyStarted = errors.New("taskdispatch: dispatcher already started")
	ErrStopped        = errors.New("taskdispatch: dispatcher stopped")

	// Item errors.
	ErrMaxAttempts = errors.New("taskdispatch: max attempts reached")
)

// errRetryRequested stands in for the cause when Retry is given nil.
var errRetryRequested = errors.New("taskdispatch: retry requested")

// PanicError is a recovered callback panic. Callback panics never escape
// a dispatcher loop; they are reported to extensions as this error.
type PanicError = middleware.PanicError

// retryError marks its cause as retryable.
type retryError struct {
	err error
}

func (e *retryError) Error() string { return e.err.Error() }
func (e *retryError) Unwrap() error { return e.err }

// Retry marks err as retryable. An execute or deliver callback that
// returns a retryable error has its item put back at the end of the
// queue it came from. Retry(nil) returns a generic retryable error.
func Retry(err error) error {
	if err == nil {
		err = errRetryRequested
	}
	return &retryError{err: err}
}

// IsRetryable reports whether err, or any error it wraps, was marked
// with Retry.
func IsRetryable(err error) bool {
	var re *retryError
	return errors.As(err, &re)
}

// isPanic reports whether err is a recovered panic.
func isPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
