// Package provider defines the byte-store abstraction backing refetch's cache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no metadata,
// no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed on read.
//
// Staleness is decided by the caller from the wire envelope, so a provider's
// own TTL handling is an additional bound, never the source of truth.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Purge removes every entry the provider holds for this cache.
	Purge(ctx context.Context) error

	// Close releases resources.
	Close(ctx context.Context) error
}
