// Package generation arbitrates overlapping attempts for the same request
// key. Each key carries a monotonically increasing counter; an attempt is
// "current" only while its generation equals the counter. Starting a new
// attempt (or cancelling a key) bumps the counter, which invalidates every
// earlier attempt without touching its in-flight I/O: stale results are
// simply discarded when they land.
package generation

import (
	"sync"
	"time"
)

// Registry issues and validates per-key attempt generations.
type Registry interface {
	// Begin bumps the key's counter and returns the new generation.
	// This is the only way a generation is issued.
	Begin(key string) uint64
	// IsCurrent reports whether gen is still the key's newest generation.
	// Every asynchronous continuation must check this before mutating
	// shared state; a false result means the outcome is discarded.
	IsCurrent(key string, gen uint64) bool
	// Current returns the key's newest generation (0 when never begun).
	// Writers snapshot it to stamp data with the generation they observed.
	Current(key string) uint64
	// Cancel invalidates the key's pending attempt without issuing a new one.
	Cancel(key string)
	// CancelAll invalidates every pending attempt.
	CancelAll()
	// Cleanup prunes entries not bumped within retention.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close() error
}

type localEntry struct {
	gen       uint64
	updatedAt time.Time
}

// Local keeps generations in-process (default).
// Optional cleanup loop to prune long-inactive keys.
type Local struct {
	mu     sync.RWMutex
	gens   map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	retention time.Duration
}

var _ Registry = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	r := &Local{
		gens:      make(map[string]localEntry),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		r.ticker = time.NewTicker(cleanupInterval)
		r.stopCh = make(chan struct{})
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-r.ticker.C:
					r.Cleanup(retention)
				case <-r.stopCh:
					return
				}
			}
		}()
	}
	return r
}

func (r *Local) Begin(key string) uint64 {
	return r.bump(key)
}

func (r *Local) IsCurrent(key string, gen uint64) bool {
	return r.Current(key) == gen
}

func (r *Local) Current(key string) uint64 {
	r.mu.RLock()
	e := r.gens[key] // zero value (gen=0) if missing
	r.mu.RUnlock()
	return e.gen
}

// Cancel bumps without handing the new generation to anyone, so the pending
// attempt can never observe itself as current again.
func (r *Local) Cancel(key string) {
	r.bump(key)
}

func (r *Local) CancelAll() {
	now := time.Now()
	r.mu.Lock()
	for k, e := range r.gens {
		e.gen++
		e.updatedAt = now
		r.gens[k] = e
	}
	r.mu.Unlock()
}

func (r *Local) bump(key string) uint64 {
	now := time.Now()
	r.mu.Lock()
	e := r.gens[key]
	e.gen++
	e.updatedAt = now
	r.gens[key] = e
	r.mu.Unlock()
	return e.gen
}

func (r *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	r.mu.Lock()
	for k, e := range r.gens {
		if !e.updatedAt.IsZero() && e.updatedAt.Before(cutoff) {
			delete(r.gens, k)
		}
	}
	r.mu.Unlock()
}

func (r *Local) Close() error {
	if r.stopCh != nil {
		close(r.stopCh)
		if r.ticker != nil {
			r.ticker.Stop() // stop ticker before waiting
		}
		r.wg.Wait()
	}
	return nil
}
