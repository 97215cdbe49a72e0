package callcache

import "time"

// EvictReason explains why a call record left an entry.
type EvictReason int

const (
	// EvictManual: Token.Evict / Invalidate.
	EvictManual EvictReason = iota
	// EvictDeadline: the staleness deadline elapsed after fulfillment.
	EvictDeadline
)

func (r EvictReason) String() string {
	switch r {
	case EvictDeadline:
		return "deadline"
	default:
		return "manual"
	}
}

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths, never under a lock.
type Hooks interface {
	// A record already existed for the key; the producer was not called.
	Hit(name, key string)
	// No record existed; the producer was called.
	Miss(name, key string)
	// A live record settled. elapsed is measured from invocation.
	Settled(name, key string, status Status, elapsed time.Duration)
	// A settlement arrived for a record that was evicted or replaced; it was dropped.
	StaleSettlement(name, key string)
	// A record was removed.
	Evicted(name, key string, reason EvictReason)
	// Records were adopted from transfer data or a Store.
	Hydrated(name string, records int)
	// Records were included in an outbound snapshot.
	Exported(name string, records int)
	// Store Load/Persist failed. op ∈ {"load", "persist"}
	StoreError(name, op string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) Hit(string, string)                            {}
func (NopHooks) Miss(string, string)                           {}
func (NopHooks) Settled(string, string, Status, time.Duration) {}
func (NopHooks) StaleSettlement(string, string)                {}
func (NopHooks) Evicted(string, string, EvictReason)           {}
func (NopHooks) Hydrated(string, int)                          {}
func (NopHooks) Exported(string, int)                          {}
func (NopHooks) StoreError(string, string, error)              {}
