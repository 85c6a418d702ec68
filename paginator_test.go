package refetch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/refetch/retry"
)

// TestPaginationAccumulates: three loads of N items each yield 3N items in
// call order, and a fourth call after hasMore=false invokes nothing.
func TestPaginationAccumulates(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)

	const n = 2
	var calls atomic.Int32
	p := NewPaginator(c, func(_ context.Context, page, pageSize int) (Page[string], error) {
		calls.Add(1)
		if pageSize != n {
			t.Errorf("pageSize = %d, want %d", pageSize, n)
		}
		items := make([]string, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, fmt.Sprintf("order-%d-%d", page, i))
		}
		return Page[string]{Items: items, HasMore: page < 3}, nil
	}, PageOptions{PageSize: n})

	for i := 0; i < 3; i++ {
		if err := p.LoadMore(ctx); err != nil {
			t.Fatalf("LoadMore %d: %v", i, err)
		}
	}

	items := p.Items()
	if len(items) != 3*n {
		t.Fatalf("len(items) = %d, want %d", len(items), 3*n)
	}
	want := []string{"order-1-0", "order-1-1", "order-2-0", "order-2-1", "order-3-0", "order-3-1"}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("items = %v, want %v", items, want)
		}
	}
	if p.HasMore() {
		t.Fatalf("hasMore should be false after the final page")
	}

	// exhausted collection: no further invocation
	if err := p.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore after exhaustion: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("operation invoked %d times, want 3", calls.Load())
	}
}

// TestLoadMoreGuardWhileInFlight: a second LoadMore during an in-flight one
// is a no-op, not a queued or superseding request.
func TestLoadMoreGuardWhileInFlight(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	p := NewPaginator(c, func(context.Context, int, int) (Page[string], error) {
		calls.Add(1)
		close(started)
		<-release
		return Page[string]{Items: []string{"a"}, HasMore: true}, nil
	}, PageOptions{PageSize: 1})

	done := make(chan error, 1)
	go func() { done <- p.LoadMore(ctx) }()
	<-started

	if err := p.LoadMore(ctx); err != nil {
		t.Fatalf("guarded LoadMore returned %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("operation invoked %d times, want 1", calls.Load())
	}
}

// TestResetDiscardsInFlightLoad: items of a load that completes after Reset
// must not appear in the fresh collection.
func TestResetDiscardsInFlightLoad(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	p := NewPaginator(c, func(context.Context, int, int) (Page[string], error) {
		close(started)
		<-release
		return Page[string]{Items: []string{"stale"}, HasMore: true}, nil
	}, PageOptions{PageSize: 1})

	done := make(chan error, 1)
	go func() { done <- p.LoadMore(ctx) }()
	<-started

	p.Reset()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	if items := p.Items(); len(items) != 0 {
		t.Fatalf("stale load leaked into reset collection: %v", items)
	}
	st := p.State()
	if st.Page != 1 || !st.HasMore || st.Loading {
		t.Fatalf("state after reset = %+v", st)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)

	p := NewPaginator(c, func(_ context.Context, page, _ int) (Page[string], error) {
		return Page[string]{Items: []string{fmt.Sprint(page)}, HasMore: false}, nil
	}, PageOptions{PageSize: 1})

	if err := p.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if p.HasMore() {
		t.Fatalf("expected exhausted collection")
	}

	p.Reset()
	if err := p.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore after Reset: %v", err)
	}
	items := p.Items()
	if len(items) != 1 || items[0] != "1" {
		t.Fatalf("reset paginator should fetch from the initial page, got %v", items)
	}
}

// TestPageRetry: a transient page failure is retried per policy and the
// items still land exactly once.
func TestPageRetry(t *testing.T) {
	ctx := context.Background()
	sched := &fakeScheduler{}
	c := newTestClient(t, func(o *Options) { o.Scheduler = sched })

	var calls atomic.Int32
	p := NewPaginator(c, func(context.Context, int, int) (Page[string], error) {
		if calls.Add(1) == 1 {
			return Page[string]{}, errors.New("connection reset")
		}
		return Page[string]{Items: []string{"a"}, HasMore: false}, nil
	}, PageOptions{
		PageSize: 1,
		Retry:    retry.Linear{Base: 50 * time.Millisecond, MaxRetries: 2},
	})

	if err := p.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("operation invoked %d times, want 2", calls.Load())
	}
	if delays := sched.recorded(); len(delays) != 1 || delays[0] != 50*time.Millisecond {
		t.Fatalf("delays = %v", delays)
	}
	if items := p.Items(); len(items) != 1 {
		t.Fatalf("items = %v", items)
	}
}

// TestPageErrorSurfaced: an exhausted page load surfaces through the return
// value, state, and OnError, and leaves the collection untouched.
func TestPageErrorSurfaced(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)

	boom := errors.New("502 bad gateway")
	var gotCallback error
	p := NewPaginator(c, func(context.Context, int, int) (Page[string], error) {
		return Page[string]{}, boom
	}, PageOptions{
		PageSize: 1,
		OnError:  func(err error) { gotCallback = err },
	})

	if err := p.LoadMore(ctx); !errors.Is(err, boom) {
		t.Fatalf("LoadMore error = %v", err)
	}
	if !errors.Is(gotCallback, boom) {
		t.Fatalf("OnError got %v", gotCallback)
	}
	st := p.State()
	if !errors.Is(st.Err, boom) || st.Loading || len(st.Items) != 0 {
		t.Fatalf("state = %+v", st)
	}
	// a failed load does not consume the page
	if st.Page != 1 {
		t.Fatalf("page advanced on failure: %d", st.Page)
	}
}

// TestLoadMoreCancellationIsSilent: a caller-cancelled load returns the ctx
// error but never shows up as a failure: no error state, no OnError, and the
// loading guard is released for the next call.
func TestLoadMoreCancellationIsSilent(t *testing.T) {
	c := newTestClient(t, nil)

	var errCalls atomic.Int32
	var calls atomic.Int32
	p := NewPaginator(c, func(ctx context.Context, _, _ int) (Page[string], error) {
		calls.Add(1)
		return Page[string]{}, ctx.Err()
	}, PageOptions{
		PageSize: 1,
		OnError:  func(error) { errCalls.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.LoadMore(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("LoadMore = %v, want context.Canceled", err)
	}

	st := p.State()
	if st.Err != nil || st.Loading {
		t.Fatalf("cancellation leaked into state: %+v", st)
	}
	if errCalls.Load() != 0 {
		t.Fatalf("OnError fired for a cancelled load")
	}

	// guard released: a live ctx loads normally afterwards
	if err := p.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore after cancellation: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("operation invoked %d times, want 2", calls.Load())
	}
}
