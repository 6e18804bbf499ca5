package domain

import "errors"

var (
	// ErrNotFound indicates an unknown rule, event or grant id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates a request rejected before any write.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState indicates a transition attempted from a state that
	// does not allow it. No mutation happened.
	ErrInvalidState = errors.New("invalid state")
)
