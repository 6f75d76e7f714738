package models

import "errors"

// Validation errors are detected before any write and returned without
// partial mutation. Anything else coming out of the models package is a
// storage error and aborts the whole transaction.
var (
	ErrDuplicateID      = errors.New("roll id already exists")
	ErrRollNotFound     = errors.New("roll id not found")
	ErrInvalidLocation  = errors.New("invalid warehouse or sub-location")
	ErrInvalidWeight    = errors.New("weight must be a positive integer")
	ErrLocationMismatch = errors.New("roll is not in the stated source location")
	ErrAlreadyTerminal  = errors.New("roll is already in a terminal location")
	// ErrInvalidInput covers malformed caller input that has no more
	// specific sentinel; wrapped with detail at the call site.
	ErrInvalidInput = errors.New("invalid input")
)
