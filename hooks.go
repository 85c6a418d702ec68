package refetch

import "time"

// Hooks are lightweight callbacks for high-signal lifecycle events.
// Implementations MUST be cheap and non-blocking; refetch calls them on hot
// paths. Wrap with hooks/async to move work off the caller's goroutine.
type Hooks interface {
	// A completed attempt's result was discarded because a newer attempt
	// had superseded it (success and failure alike).
	StaleResultDropped(key string, gen uint64)

	// A failed attempt will be re-run after delay.
	RetryScheduled(key string, attempt int, delay time.Duration)

	// The retry budget ran out; err is the last attempt's error.
	RetriesExhausted(key string, attempts int, err error)

	// A corrupt or undecodable cache entry was deleted on read.
	// reason ∈ {"corrupt", "value_decode"}
	CacheSelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// An optimistic write failed and the prior state was restored.
	OptimisticRollback(name string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) StaleResultDropped(string, uint64)         {}
func (NopHooks) RetryScheduled(string, int, time.Duration) {}
func (NopHooks) RetriesExhausted(string, int, error)       {}
func (NopHooks) CacheSelfHeal(string, string)              {}
func (NopHooks) ProviderSetRejected(string)                {}
func (NopHooks) OptimisticRollback(string)                 {}
