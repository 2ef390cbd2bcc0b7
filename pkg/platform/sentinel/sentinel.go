// Package sentinel holds the infrastructure errors returned by the store and
// cache layers. Services translate them into domain errors at their boundary;
// input validation uses pkg/domain-errors instead.
package sentinel

import "errors"

var (
	// ErrNotFound means the record is absent or soft-deleted.
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a write broke a uniqueness rule (one profile per user).
	ErrConflict = errors.New("record conflict")
	// ErrUnavailable means a backing service could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrCacheMiss means the key is absent or its TTL has elapsed.
	ErrCacheMiss = errors.New("cache miss")
)
