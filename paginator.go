package refetch

import (
	"context"
	"errors"
	"sync"

	"github.com/unkn0wn-root/refetch/retry"
)

// Page is one fetched slice of a growing collection.
type Page[V any] struct {
	Items   []V
	HasMore bool
}

// PageOperation fetches one page. page starts at PageOptions.StartPage.
type PageOperation[V any] func(ctx context.Context, page, pageSize int) (Page[V], error)

// PageOptions tune a single Paginator.
type PageOptions struct {
	PageSize  int          // 0 => 20
	StartPage int          // 0 => 1
	Retry     retry.Policy // nil => no retries
	OnError   func(error)
}

// PaginationState is the consumer-visible snapshot of an accumulating list.
type PaginationState[V any] struct {
	Items   []V
	Page    int
	HasMore bool
	Loading bool
	Err     error
}

// Paginator drives repeated reads that append to one ordered collection
// (infinite scroll). It bypasses the cache, and uses a loading guard rather
// than generations: there is no "current key" to supersede, only a single
// growing sequence. Items are only ever appended, never edited in place,
// so already-rendered items stay stable. Deduplication is a caller concern.
type Paginator[V any] struct {
	c        *Client
	op       PageOperation[V]
	pageSize int
	start    int
	policy   retry.Policy
	onError  func(error)

	mu      sync.Mutex
	items   []V
	page    int
	hasMore bool
	loading bool
	err     error
	epoch   uint64 // bumped by Reset; discards completions that straddle it

	subs subscribers[PaginationState[V]]
}

// NewPaginator builds a Paginator on c.
func NewPaginator[V any](c *Client, op PageOperation[V], opts PageOptions) *Paginator[V] {
	start := opts.StartPage
	if start == 0 {
		start = 1
	}
	p := &Paginator[V]{
		c:        c,
		op:       op,
		pageSize: coalesce[int](opts.PageSize, 20),
		start:    start,
		policy:   opts.Retry,
		onError:  opts.OnError,
		page:     start,
		hasMore:  true,
	}
	if p.policy == nil {
		p.policy = retry.None{}
	}
	return p
}

// LoadMore fetches the next page and appends its items. A no-op (nil) while
// a load is in flight or when the collection is exhausted.
func (p *Paginator[V]) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	p.err = nil
	epoch := p.epoch
	page := p.page
	st := p.snapshotLocked()
	p.mu.Unlock()
	p.subs.notify(st)

	for attempt := 1; ; attempt++ {
		pg, err := p.op(ctx, page, p.pageSize)

		if err == nil {
			p.mu.Lock()
			if p.epoch != epoch {
				p.mu.Unlock()
				return nil // reset during flight; result discarded
			}
			p.items = append(p.items, pg.Items...)
			p.page = page + 1
			p.hasMore = pg.HasMore
			p.loading = false
			st := p.snapshotLocked()
			p.mu.Unlock()
			p.subs.notify(st)
			return nil
		}

		if p.policy.ShouldRetry(err, attempt) {
			delay := p.policy.DelayFor(attempt)
			p.c.hooks.RetryScheduled("paginate", attempt, delay)
			if serr := p.c.sched.Sleep(ctx, delay); serr != nil {
				err = serr
			} else {
				p.mu.Lock()
				stale := p.epoch != epoch
				p.mu.Unlock()
				if stale {
					return nil
				}
				continue
			}
		}

		if errors.Is(err, context.Canceled) {
			// caller walked away; not a user-visible failure
			p.mu.Lock()
			if p.epoch == epoch {
				p.loading = false
			}
			p.mu.Unlock()
			return err
		}

		p.mu.Lock()
		if p.epoch != epoch {
			p.mu.Unlock()
			return nil
		}
		p.loading = false
		p.err = err
		st := p.snapshotLocked()
		p.mu.Unlock()
		p.subs.notify(st)
		if p.onError != nil {
			p.onError(err)
		}
		return err
	}
}

// Reset clears the accumulated items and restores the initial page. A load
// still in flight is discarded when it completes.
func (p *Paginator[V]) Reset() {
	p.mu.Lock()
	p.epoch++
	p.items = nil
	p.page = p.start
	p.hasMore = true
	p.loading = false
	p.err = nil
	st := p.snapshotLocked()
	p.mu.Unlock()
	p.subs.notify(st)
}

// Items returns a copy of the accumulated items in load order.
func (p *Paginator[V]) Items() []V {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]V(nil), p.items...)
}

// HasMore reports whether another LoadMore would fetch.
func (p *Paginator[V]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Loading reports whether a load is in flight.
func (p *Paginator[V]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// State returns the current consumer-visible snapshot.
func (p *Paginator[V]) State() PaginationState[V] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registers fn for every committed transition and invokes it once
// immediately with the current snapshot.
func (p *Paginator[V]) Subscribe(fn func(PaginationState[V])) (cancel func()) {
	cancel, _ = p.subs.add(fn)
	fn(p.State())
	return cancel
}

func (p *Paginator[V]) snapshotLocked() PaginationState[V] {
	return PaginationState[V]{
		Items:   append([]V(nil), p.items...),
		Page:    p.page,
		HasMore: p.hasMore,
		Loading: p.loading,
		Err:     p.err,
	}
}
