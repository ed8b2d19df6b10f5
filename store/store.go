// Package store provides a small key-value capability interface shared by the
// key store and other hash-record consumers, with an in-process implementation
// and a Redis-backed implementation selected by configuration at startup.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the addressed key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is the backend contract for hash-shaped records. Implementations must
// be safe for concurrent use; IncrBy must be atomic with respect to other
// increments on the same key/field.
type Store interface {
	// GetAll returns all fields of the record at key, or ErrNotFound.
	GetAll(ctx context.Context, key string) (map[string]string, error)

	// Set replaces the record at key with the given fields.
	Set(ctx context.Context, key string, fields map[string]string) error

	// SetField updates a single field of an existing record. Returns
	// ErrNotFound when the record does not exist.
	SetField(ctx context.Context, key, field, value string) error

	// IncrBy atomically increments a numeric field and returns the new value.
	// Returns ErrNotFound when the record does not exist.
	IncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// Exists reports whether a record exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}
