package refetch

import (
	"context"
	"strconv"
	"sync"
)

// WriteOperation performs the write and returns its real result.
type WriteOperation[A, V any] func(ctx context.Context, args A) (V, error)

// MutateOptions tune a single Mutator.
type MutateOptions[V any] struct {
	// Name identifies the mutator in hooks and supersession; anonymous
	// mutators get a generated one.
	Name string

	OnSuccess func(V)
	OnError   func(error)
}

// Mutator drives write operations with optional optimistic application and
// rollback. Writes bypass the cache entirely and are never retried: they
// may not be idempotent. Overlapping Runs on the same mutator are arbitrated
// by the generation registry: the latest Run owns the state.
type Mutator[A, V any] struct {
	c    *Client
	op   WriteOperation[A, V]
	name string
	sk   string

	onSuccess func(V)
	onError   func(error)

	mu    sync.Mutex
	state RequestState[V]
	subs  subscribers[RequestState[V]]
}

// NewMutator builds a Mutator on c.
func NewMutator[A, V any](c *Client, op WriteOperation[A, V], opts MutateOptions[V]) *Mutator[A, V] {
	name := opts.Name
	if name == "" {
		name = "mutator-" + strconv.FormatUint(c.mutatorSeq.Add(1), 10)
	}
	return &Mutator[A, V]{
		c:         c,
		op:        op,
		name:      name,
		sk:        "mutate:" + c.ns + ":" + name,
		onSuccess: opts.OnSuccess,
		onError:   opts.OnError,
	}
}

// Run executes the write. State transitions loading -> success/error; the
// error is always surfaced (state, OnError, and the return value).
func (m *Mutator[A, V]) Run(ctx context.Context, args A) (V, error) {
	return m.run(ctx, args, nil)
}

// RunOptimistic sets the consumer-visible state to optimistic before the
// write completes. On success the real result replaces it; on failure the
// entire pre-call state is restored (rollback) and the error is surfaced.
func (m *Mutator[A, V]) RunOptimistic(ctx context.Context, args A, optimistic V) (V, error) {
	return m.run(ctx, args, &optimistic)
}

func (m *Mutator[A, V]) run(ctx context.Context, args A, optimistic *V) (V, error) {
	var zero V

	m.mu.Lock()
	gen := m.c.reg.Begin(m.sk)
	prior := m.state
	st := RequestState[V]{Status: StatusLoading, Data: prior.Data}
	if optimistic != nil {
		st.Data = *optimistic
	}
	m.state = st
	m.mu.Unlock()
	m.subs.notify(st)

	v, err := m.op(ctx, args)

	if err == nil {
		if !m.commit(gen, RequestState[V]{Status: StatusSuccess, Data: v}) {
			return zero, ErrSuperseded
		}
		if m.onSuccess != nil {
			m.onSuccess(v)
		}
		return v, nil
	}

	if optimistic != nil {
		// rollback: the pre-call state, not an error state, since the optimistic
		// value must never survive a failed write
		if m.commit(gen, prior) {
			m.c.hooks.OptimisticRollback(m.name)
		} else {
			return zero, ErrSuperseded
		}
	} else if !m.commit(gen, RequestState[V]{Status: StatusError, Err: err}) {
		return zero, ErrSuperseded
	}

	if m.onError != nil {
		m.onError(err)
	}
	return zero, err
}

// Reset returns the mutator to idle, discarding any result or error.
func (m *Mutator[A, V]) Reset() {
	m.c.reg.Cancel(m.sk)
	st := RequestState[V]{Status: StatusIdle}
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.subs.notify(st)
}

// State returns the current consumer-visible snapshot.
func (m *Mutator[A, V]) State() RequestState[V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every committed transition and invokes it once
// immediately with the current snapshot.
func (m *Mutator[A, V]) Subscribe(fn func(RequestState[V])) (cancel func()) {
	cancel, _ = m.subs.add(fn)
	fn(m.State())
	return cancel
}

func (m *Mutator[A, V]) commit(gen uint64, st RequestState[V]) bool {
	m.mu.Lock()
	if !m.c.reg.IsCurrent(m.sk, gen) {
		m.mu.Unlock()
		m.c.hooks.StaleResultDropped(m.name, gen)
		return false
	}
	m.state = st
	m.mu.Unlock()
	m.subs.notify(st)
	return true
}
