package engine

import "errors"

// Engine errors. Malformed question data and out-of-range navigation are
// deliberately not errors: they are logged or ignored.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNoSession        = errors.New("no active session")
	ErrReadOnly         = errors.New("session is read-only")
	ErrEmptySession     = errors.New("session has no questions")
	ErrNotSubmittable   = errors.New("session mode cannot be submitted")
	ErrMalformedOptions = errors.New("malformed options")
	ErrMalformedAnswer  = errors.New("unresolvable correct answer")
)
