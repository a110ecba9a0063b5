package ports

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by a KVStore when a write would exceed its
// storage quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// ErrStoreUnavailable is returned by a KVStore that cannot be used at all.
var ErrStoreUnavailable = errors.New("storage unavailable")

// KVStore is the synchronous key-value capability behind the persistent
// buffer. Values are opaque strings.
type KVStore interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Probe reports whether the store is usable.
	Probe(ctx context.Context) error
}
