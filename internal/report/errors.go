package report

import (
	"errors"
	"fmt"
)

// ErrSessionBusy is returned when a preview or save is requested while a
// prior one is still pending. The caller retries after the pending operation
// resolves; nothing is queued.
var ErrSessionBusy = errors.New("a preview or save is already in progress")

// ErrSessionClosed is returned when an operation is attempted on a torn-down
// builder session. Results of requests that were in flight at teardown are
// discarded instead of mutating disposed state.
var ErrSessionClosed = errors.New("builder session is closed")

// ValidationError is a local, pre-flight refusal: the draft is missing
// something required before a collaborator may be called. It surfaces as a
// user-facing warning and never changes state.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CollaboratorError wraps a remote failure: a query execution, catalog load,
// or store operation that reported failure or could not be reached. The
// message is surfaced to the user verbatim; draft state is left unchanged so
// the operation can be retried.
type CollaboratorError struct {
	Msg string
	Err error
}

func (e *CollaboratorError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request failed"
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func collaborator(err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Msg: err.Error(), Err: err}
}

// IsCollaborator reports whether err is a CollaboratorError.
func IsCollaborator(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
