// Package store provides the durable key-value persistence layer backing the
// quota reservation and the deferred queue. Values are opaque byte slices;
// callers own encoding. A missing key is not an error: consumers treat absent
// or undecodable values as empty state so a corrupt row can never permanently
// wedge the engine.
package store

import (
	"context"
	"time"
)

// Store is the minimal persistence API used by the quota and queue layers.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set durably writes the value for key, replacing any prior value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Config configures the sqlite-backed store.
type Config struct {
	// Path is the sqlite database file. The parent directory is created if
	// needed.
	Path string

	// BusyTimeout bounds how long a write waits on a locked database.
	// 0 means the sqlite default.
	BusyTimeout time.Duration
}
