package store

import "errors"

var (
	// ErrNotFound is returned when a record id is not present.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a user email is already taken.
	ErrDuplicateEmail = errors.New("email already exists")
)
