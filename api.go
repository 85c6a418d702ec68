package refetch

import (
	"time"

	gen "github.com/unkn0wn-root/refetch/generation"
	pr "github.com/unkn0wn-root/refetch/provider"
)

// Options tune a Client. Only Namespace is required; others have sensible
// defaults.
type Options struct {
	// Required. Logical namespace to avoid key collisions between clients
	// sharing a provider. e.g. "branches", "menu", "orders".
	Namespace string

	Provider pr.Provider  // nil => in-process memory provider
	Registry gen.Registry // nil => generation.NewLocal (in-process)

	Logger    Logger    // nil => NopLogger
	Hooks     Hooks     // nil => NopHooks
	Scheduler Scheduler // nil => real timers; inject a fake in tests

	DefaultTTL      time.Duration // cache entries; 0 => 10m
	CleanupInterval time.Duration // registry sweep; 0 => 1h
	GenRetention    time.Duration // prune generations idle this long; 0 => 24h

	// Disabled turns the cache into a passthrough: every Execute invokes its
	// operation. Supersession and retries still apply.
	Disabled bool
}

// New builds a Client. The Client owns the default provider/registry it
// creates; caller-supplied ones are closed by the caller.
func New(opts Options) (*Client, error) {
	return newClient(opts)
}
