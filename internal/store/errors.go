package store

import "errors"

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateKey is returned when an insert or update would violate
	// the uniqueness of email, username or googleId. It is the authoritative
	// conflict signal; application pre-checks can race.
	ErrDuplicateKey = errors.New("duplicate key")
)
