package domain

import "errors"

var (
	// ErrInvalidInput marks caller contract violations; it is the only hard failure of a run.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by search agents that have no replacement to offer.
	ErrNotFound = errors.New("not found")
)
