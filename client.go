package refetch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gen "github.com/unkn0wn-root/refetch/generation"
	"github.com/unkn0wn-root/refetch/provider/memory"

	pr "github.com/unkn0wn-root/refetch/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultSweep        = time.Hour
	defaultGenRetention = 24 * time.Hour
)

// Client is the shared substrate for every orchestrator built on it: one
// provider (the cache), one generation registry, one set of defaults. It is
// constructed once and passed by reference; there is no package-level state.
type Client struct {
	ns       string
	provider pr.Provider
	reg      gen.Registry
	log      Logger
	hooks    Hooks
	sched    Scheduler

	enabled    bool
	defaultTTL time.Duration

	ownsProvider bool
	ownsRegistry bool

	// in-flight attempt cancel funcs, keyed by storage key. Advisory only:
	// correctness never depends on the transport honoring the signal.
	attemptMu sync.Mutex
	attempts  map[string]inflightAttempt

	mutatorSeq atomic.Uint64 // default names for anonymous mutators
}

type inflightAttempt struct {
	gen    uint64
	cancel context.CancelFunc
}

// trackAttempt records the newest attempt's cancel func and asks any
// superseded in-flight operation to stop early. A retry re-registers under
// its original generation and never cancels anything.
func (c *Client) trackAttempt(sk string, gen uint64, cancel context.CancelFunc) {
	c.attemptMu.Lock()
	prev, ok := c.attempts[sk]
	if ok && prev.gen > gen {
		// a newer attempt already registered; leave it alone
		c.attemptMu.Unlock()
		return
	}
	c.attempts[sk] = inflightAttempt{gen: gen, cancel: cancel}
	c.attemptMu.Unlock()

	if ok && prev.gen < gen {
		prev.cancel()
	}
}

// untrackAttempt drops the record unless a newer attempt replaced it.
func (c *Client) untrackAttempt(sk string, gen uint64) {
	c.attemptMu.Lock()
	if cur, ok := c.attempts[sk]; ok && cur.gen == gen {
		delete(c.attempts, sk)
	}
	c.attemptMu.Unlock()
}

// cancelAttempt fires the advisory cancel for key's in-flight attempt.
func (c *Client) cancelAttempt(sk string) {
	c.attemptMu.Lock()
	cur, ok := c.attempts[sk]
	delete(c.attempts, sk)
	c.attemptMu.Unlock()
	if ok {
		cur.cancel()
	}
}

func newClient(opts Options) (*Client, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("refetch: namespace is required")
	}

	c := &Client{
		ns:       opts.Namespace,
		enabled:  !opts.Disabled,
		attempts: make(map[string]inflightAttempt),
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.sched = coalesce[Scheduler](opts.Scheduler, timerScheduler{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)

	if opts.Provider != nil {
		c.provider = opts.Provider
	} else {
		c.provider = memory.New()
		c.ownsProvider = true
	}

	if opts.Registry != nil {
		c.reg = opts.Registry
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		retention := coalesce[time.Duration](opts.GenRetention, defaultGenRetention)
		c.reg = gen.NewLocal(sweep, retention)
		c.ownsRegistry = true
	}

	return c, nil
}

// Enabled reports whether cache reads/writes are active.
func (c *Client) Enabled() bool { return c.enabled }

// Invalidate evicts key's cache entry and invalidates any in-flight attempt
// for it: once data is known stale, a pending read for it is stale too.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	k := c.storageKey(key)
	c.reg.Cancel(k)
	c.cancelAttempt(k)
	if err := c.provider.Del(ctx, k); err != nil {
		return &InvalidateError{Key: key, DelErr: err}
	}
	c.log.Debug("invalidated key (cancelled gen + cleared entry)", Fields{"key": key})
	return nil
}

// InvalidateAll cancels every pending attempt and purges the provider.
func (c *Client) InvalidateAll(ctx context.Context) error {
	c.reg.CancelAll()
	return c.provider.Purge(ctx)
}

// Close releases the registry and provider this client owns. Caller-supplied
// ones are left open.
func (c *Client) Close(ctx context.Context) error {
	if c.ownsRegistry {
		_ = c.reg.Close()
	}
	if c.ownsProvider {
		return c.provider.Close(ctx)
	}
	return nil
}

// storageKey isolates entries by namespace. The "fetch:" keyspace is owned
// by refetch; foreign writes under it may be deleted as corruption.
func (c *Client) storageKey(key string) string {
	return "fetch:" + c.ns + ":" + key
}
