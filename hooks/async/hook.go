// Package asynchook decouples hook work from refetch's hot paths: events are
// queued and replayed on worker goroutines, and dropped when the queue is
// full rather than blocking a fetch.
//
// usage:
//
//	raw := loghooks.New(slog.Default(), loghooks.Options{})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	c, _ := refetch.New(refetch.Options{
//	    Namespace: "branches",
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/refetch"
)

type Hooks struct {
	inner refetch.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ refetch.Hooks = (*Hooks)(nil)

func New(inner refetch.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) StaleResultDropped(k string, g uint64) {
	h.try(func() { h.inner.StaleResultDropped(k, g) })
}
func (h *Hooks) RetryScheduled(k string, a int, d time.Duration) {
	h.try(func() { h.inner.RetryScheduled(k, a, d) })
}
func (h *Hooks) RetriesExhausted(k string, a int, err error) {
	h.try(func() { h.inner.RetriesExhausted(k, a, err) })
}
func (h *Hooks) CacheSelfHeal(k, r string)      { h.try(func() { h.inner.CacheSelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)   { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) OptimisticRollback(name string) { h.try(func() { h.inner.OptimisticRollback(name) }) }
