// Package memory is the default in-process provider: a mutex-guarded map
// with lazily-checked per-entry expiry. Size is unbounded; use the ristretto
// or bigcache providers when you need an eviction bound.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/refetch/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no expiry
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]entry
}

var _ pr.Provider = (*Memory)(nil)

func New() *Memory {
	return &Memory{m: make(map[string]entry)}
}

func (p *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		p.mu.Lock()
		// re-check under the write lock; a fresher Set may have raced in
		if cur, ok := p.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Memory) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = entry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Memory) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Memory) Purge(_ context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]entry)
	p.mu.Unlock()
	return nil
}

func (p *Memory) Close(_ context.Context) error { return nil }

// Len reports the number of stored entries, including not-yet-collected
// expired ones. Intended for tests and diagnostics.
func (p *Memory) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.m)
}
