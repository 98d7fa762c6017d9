package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrVersionConflict indicates a conditional replace lost to a concurrent
	// writer; callers re-read the document and retry.
	ErrVersionConflict = errors.New("document version conflict")
)
