package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the caller supplied invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Kind returns a sentinel error with message msg that also matches kind
// under errors.Is, letting transport layers classify domain errors.
func Kind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
