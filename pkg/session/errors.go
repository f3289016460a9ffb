package session

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when no credential pair matches.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned by Register when the email is already in the directory.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned when a required field is empty.
	ErrInvalidInput = errors.New("invalid input")
)
