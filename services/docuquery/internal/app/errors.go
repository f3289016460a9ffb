package app

import "errors"

var (
	// ErrNoSession indicates the token's slot holds no identity.
	ErrNoSession = errors.New("no active session")
)
