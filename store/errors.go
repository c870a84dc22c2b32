package store

import "errors"

var (
	// ErrInvalidEntity is returned when a payload is malformed or misses a key part.
	ErrInvalidEntity = errors.New("storefront: invalid entity")

	// ErrNotFound is returned when no record exists for the requested key.
	ErrNotFound = errors.New("storefront: entity not found")

	// ErrAlreadyExists is returned when inserting a record whose key is taken.
	ErrAlreadyExists = errors.New("storefront: entity already exists")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("storefront: entity was modified concurrently")
)

// IsConflict reports whether err is a duplicate key or a stale version.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrConcurrentModification)
}
