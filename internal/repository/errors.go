package repository

import "errors"

// Common repository errors, mapped from driver errors by implementations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry indicates a unique constraint violation.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

var (
	ErrRoomNotFound = ErrNotFound
)
