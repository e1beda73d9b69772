package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist, or that a referenced
	// row (foreign key) is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write would duplicate a unique row: an email, a
	// username, a follow edge or a like.
	ErrConflict = errors.New("record conflict")
	// ErrSelfFollow is returned when a user attempts to follow themselves.
	ErrSelfFollow = errors.New("users cannot follow themselves")
)
