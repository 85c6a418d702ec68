package refetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unkn0wn-root/refetch/codec"
	"github.com/unkn0wn-root/refetch/retry"
)

// Operation produces the value for a read. It should fail on its own
// schedule (the transport's timeout); refetch imposes no deadline of its
// own. The ctx is cancelled when a newer attempt supersedes this one;
// honoring it is an optimization, not a correctness requirement.
type Operation[V any] func(ctx context.Context) (V, error)

// FetchOptions tune a single Fetcher.
type FetchOptions[V any] struct {
	Codec codec.Codec[V] // nil => codec.JSON[V]

	TTL          time.Duration // cache freshness window; 0 => client default
	DisableCache bool          // always invoke the operation

	// MaxRetries/RetryBaseDelay configure the default linear policy
	// (delay = base * attempt). MaxRetries 0 means no retries.
	MaxRetries     int
	RetryBaseDelay time.Duration // 0 => 500ms
	Retry          retry.Policy  // overrides MaxRetries/RetryBaseDelay when set

	// Immediate triggers a background Execute on the first subscription.
	Immediate bool

	OnSuccess func(V)
	OnError   func(error)
}

// Fetcher drives one keyed read operation: cache check, supersession,
// retries, state transitions. Multiple fetchers may share a key; the
// generation registry guarantees the visible outcome always belongs to the
// most recently initiated attempt.
type Fetcher[V any] struct {
	c     *Client
	key   string
	sk    string
	op    Operation[V]
	store *CacheStore[V]

	policy    retry.Policy
	ttl       time.Duration
	useCache  bool
	immediate bool
	onSuccess func(V)
	onError   func(error)

	mu    sync.Mutex
	state RequestState[V]
	subs  subscribers[RequestState[V]]
}

// NewFetcher builds a Fetcher on c for key. The operation is not invoked
// until Execute (or the first subscription with Immediate set).
func NewFetcher[V any](c *Client, key string, op Operation[V], opts FetchOptions[V]) *Fetcher[V] {
	f := &Fetcher[V]{
		c:         c,
		key:       key,
		sk:        c.storageKey(key),
		op:        op,
		store:     NewCacheStore[V](c, opts.Codec),
		ttl:       coalesce[time.Duration](opts.TTL, c.defaultTTL),
		useCache:  !opts.DisableCache,
		immediate: opts.Immediate,
		onSuccess: opts.OnSuccess,
		onError:   opts.OnError,
	}

	switch {
	case opts.Retry != nil:
		f.policy = opts.Retry
	case opts.MaxRetries > 0:
		f.policy = retry.Linear{
			Base:       coalesce[time.Duration](opts.RetryBaseDelay, 500*time.Millisecond),
			MaxRetries: opts.MaxRetries,
		}
	default:
		f.policy = retry.None{}
	}
	return f
}

// Execute runs the read lifecycle once: fresh cache hit returns immediately
// without invoking the operation; otherwise the operation runs (with retries
// per policy) under a new generation. A superseded attempt returns
// ErrSuperseded and leaves state untouched. A caller-cancelled ctx returns
// its error without transitioning state, since cancellation is not a failure.
func (f *Fetcher[V]) Execute(ctx context.Context) (V, error) {
	var zero V

	if f.useCache {
		if v, ok, err := f.store.Get(ctx, f.key); err == nil && ok {
			f.setState(RequestState[V]{Status: StatusSuccess, Data: v})
			return v, nil
		}
	}

	// Begin and the loading transition happen under f.mu so overlapping
	// Executes on this fetcher serialize their transitions in begin order.
	f.mu.Lock()
	gen := f.c.reg.Begin(f.sk)
	st := RequestState[V]{Status: StatusLoading, Data: f.state.Data}
	f.state = st
	f.mu.Unlock()
	f.subs.notify(st)

	for attempt := 1; ; attempt++ {
		opCtx, cancelOp := context.WithCancel(ctx)
		f.c.trackAttempt(f.sk, gen, cancelOp)
		v, err := f.op(opCtx)
		cancelOp()
		f.c.untrackAttempt(f.sk, gen)

		if err == nil {
			// the state commit is the supersession gate; only a result that
			// won it may populate the cache. The write is stamped with gen,
			// so even one landing after a newer Begin is skipped or rejected
			// on the next read.
			if !f.commit(gen, RequestState[V]{Status: StatusSuccess, Data: v}) {
				return zero, ErrSuperseded
			}
			if f.useCache {
				if serr := f.store.SetWithGen(ctx, f.key, v, gen, f.ttl); serr != nil {
					f.c.log.Warn("cache set failed after fetch", Fields{"key": f.key, "err": serr})
				}
			}
			if f.onSuccess != nil {
				f.onSuccess(v)
			}
			return v, nil
		}

		if !f.c.reg.IsCurrent(f.sk, gen) {
			// discard silently: no state transition, no callback
			f.c.hooks.StaleResultDropped(f.key, gen)
			return zero, ErrSuperseded
		}

		if errors.Is(err, context.Canceled) {
			// caller walked away; not a user-visible failure
			return zero, err
		}

		if f.policy.ShouldRetry(err, attempt) {
			delay := f.policy.DelayFor(attempt)
			f.c.hooks.RetryScheduled(f.key, attempt, delay)
			f.c.log.Debug("retrying after failure", Fields{
				"key": f.key, "attempt": attempt, "delay": delay, "err": err,
			})
			if serr := f.c.sched.Sleep(ctx, delay); serr != nil {
				return zero, serr
			}
			// same generation: a retry is not a new user-initiated request
			// and must not supersede itself
			if !f.c.reg.IsCurrent(f.sk, gen) {
				return zero, ErrSuperseded
			}
			continue
		}

		if attempt > 1 {
			f.c.hooks.RetriesExhausted(f.key, attempt, err)
			err = &retry.ExhaustedError{Attempts: attempt, Err: err}
		}
		if !f.commit(gen, RequestState[V]{Status: StatusError, Err: err}) {
			return zero, ErrSuperseded
		}
		if f.onError != nil {
			f.onError(err)
		}
		return zero, err
	}
}

// Refresh evicts the cache entry for this key and re-executes.
func (f *Fetcher[V]) Refresh(ctx context.Context) (V, error) {
	if f.useCache {
		if err := f.store.Delete(ctx, f.key); err != nil {
			f.c.log.Warn("refresh: cache delete failed", Fields{"key": f.key, "err": err})
		}
	}
	return f.Execute(ctx)
}

// Mutate overwrites the consumer-visible state and the cache entry locally,
// bypassing the network. Used for optimistic local updates unrelated to an
// in-flight fetch.
func (f *Fetcher[V]) Mutate(v V) {
	f.setState(RequestState[V]{Status: StatusSuccess, Data: v})
	if f.useCache {
		if err := f.store.Set(context.Background(), f.key, v, f.ttl); err != nil {
			f.c.log.Warn("mutate: cache set failed", Fields{"key": f.key, "err": err})
		}
	}
}

// Cancel invalidates any in-flight attempt for this key and asks its
// operation to stop. Call on consumer teardown.
func (f *Fetcher[V]) Cancel() {
	f.c.reg.Cancel(f.sk)
	f.c.cancelAttempt(f.sk)
}

// State returns the current consumer-visible snapshot.
func (f *Fetcher[V]) State() RequestState[V] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Subscribe registers fn for every committed transition and invokes it once
// immediately with the current snapshot. With Immediate set, the first
// subscription triggers a background Execute. The returned cancel
// unregisters the listener.
func (f *Fetcher[V]) Subscribe(fn func(RequestState[V])) (cancel func()) {
	cancel, first := f.subs.add(fn)
	fn(f.State())
	if first && f.immediate {
		go func() { _, _ = f.Execute(context.Background()) }()
	}
	return cancel
}

// commit applies st only while gen is still current. The registry check and
// the state write happen under f.mu, so a newer attempt's Begin (also under
// f.mu) cannot slip between them. Listeners run after the lock is released,
// on this goroutine.
func (f *Fetcher[V]) commit(gen uint64, st RequestState[V]) bool {
	f.mu.Lock()
	if !f.c.reg.IsCurrent(f.sk, gen) {
		f.mu.Unlock()
		f.c.hooks.StaleResultDropped(f.key, gen)
		return false
	}
	f.state = st
	f.mu.Unlock()
	f.subs.notify(st)
	return true
}

func (f *Fetcher[V]) setState(st RequestState[V]) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
	f.subs.notify(st)
}
