package service

import (
	"errors"

	"docuquery/pkg/store"
)

var (
	// ErrNotFound is returned when an id does not name an existing record.
	ErrNotFound = store.ErrNotFound
	// ErrEmailExists is returned when a user email is already taken.
	ErrEmailExists = store.ErrDuplicateEmail
	// ErrInvalidInput is returned for missing or malformed fields.
	ErrInvalidInput = errors.New("invalid input")
)
