// Package provider defines the byte store a callcache ProviderStore persists
// settled calls into.
//
// Implementations must be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. Stores that compress or otherwise
// transform values internally must fully reverse it on read.
//
// The "calls:<ns>:" keyspace belongs to callcache. Foreign values under it
// fail frame validation and are deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs, safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. cost is a size hint for cost-based stores; ttl <= 0
	// means no expiry. ok=false reports a write the store refused under
	// pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
