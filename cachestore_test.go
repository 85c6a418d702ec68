package refetch

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/refetch/codec"
	"github.com/unkn0wn-root/refetch/provider/memory"
)

func TestCacheStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)
	s := NewCacheStore[branch](c, codec.JSON[branch]{})

	k := "branch-1"
	v := branch{ID: "branch-1", Name: "Downtown"}

	if _, ok, err := s.Get(ctx, k); err != nil || ok {
		t.Fatalf("Get miss expected, ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, k, v, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, k)
	if err != nil || !ok || got != v {
		t.Fatalf("Get after set: ok=%v err=%v got=%v", ok, err, got)
	}
	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, k); ok {
		t.Fatalf("Get after delete should miss")
	}
}

// TestCacheStoreLazyExpiry: a stale entry reads as absent but is left in the
// provider; the next Set overwrites it in place.
func TestCacheStoreLazyExpiry(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	c := newTestClient(t, func(o *Options) { o.Provider = mp })
	s := NewCacheStore[branch](c, codec.JSON[branch]{})

	if err := s.Set(ctx, "k", branch{ID: "k"}, 30*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("stale entry should read as absent, ok=%v err=%v", ok, err)
	}
	// not eagerly deleted
	if mp.Len() != 1 {
		t.Fatalf("stale entry was evicted eagerly (len=%d)", mp.Len())
	}

	want := branch{ID: "k", Name: "fresh"}
	if err := s.Set(ctx, "k", want, time.Minute); err != nil {
		t.Fatalf("overwrite Set: %v", err)
	}
	got, ok, _ := s.Get(ctx, "k")
	if !ok || got != want {
		t.Fatalf("Get after overwrite: ok=%v got=%v", ok, got)
	}
}

// TestCacheStoreSelfHealOnCorrupt: foreign bytes under a refetch key are
// deleted on read and reported through the hook.
func TestCacheStoreSelfHealOnCorrupt(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	hooks := &recordingHooks{}
	c := newTestClient(t, func(o *Options) {
		o.Provider = mp
		o.Hooks = hooks
	})
	s := NewCacheStore[branch](c, codec.JSON[branch]{})

	storageKey := c.storageKey("bad")
	if ok, err := mp.Set(ctx, storageKey, []byte("not-wire-format"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("inject corrupt: ok=%v err=%v", ok, err)
	}

	if _, ok, err := s.Get(ctx, "bad"); err != nil || ok {
		t.Fatalf("Get on corrupt should miss, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := mp.Get(ctx, storageKey); ok {
		t.Fatalf("corrupt entry was not deleted by self-heal")
	}

	hooks.mu.Lock()
	heals := append([]string(nil), hooks.selfHeals...)
	hooks.mu.Unlock()
	if len(heals) != 1 || heals[0] != "corrupt" {
		t.Fatalf("self-heal events = %v", heals)
	}
}

// TestCacheStoreRejectsSupersededGeneration: an entry stamped with an older
// generation is never served and is evicted on read; a write observing an
// older generation is skipped entirely.
func TestCacheStoreRejectsSupersededGeneration(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	c := newTestClient(t, func(o *Options) { o.Provider = mp })
	s := NewCacheStore[branch](c, codec.JSON[branch]{})

	sk := c.storageKey("k")
	gen := c.reg.Begin(sk)
	if err := s.SetWithGen(ctx, "k", branch{ID: "k", Name: "old"}, gen, time.Minute); err != nil {
		t.Fatalf("SetWithGen: %v", err)
	}

	// a newer attempt begins; the stored entry is now stale by initiation
	c.reg.Begin(sk)

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("superseded entry served: ok=%v err=%v", ok, err)
	}
	if mp.Len() != 0 {
		t.Fatalf("superseded entry not evicted (len=%d)", mp.Len())
	}

	// a write still holding the old generation must not land
	if err := s.SetWithGen(ctx, "k", branch{ID: "k", Name: "late"}, gen, time.Minute); err != nil {
		t.Fatalf("stale SetWithGen: %v", err)
	}
	if mp.Len() != 0 {
		t.Fatalf("stale write landed (len=%d)", mp.Len())
	}
}

func TestCacheStoreClearPurges(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)
	s := NewCacheStore[branch](c, codec.JSON[branch]{})

	_ = s.Set(ctx, "a", branch{ID: "a"}, time.Minute)
	_ = s.Set(ctx, "b", branch{ID: "b"}, time.Minute)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("entry survived Clear")
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatalf("entry survived Clear")
	}
}

func TestCacheStoreDisabledPassthrough(t *testing.T) {
	ctx := context.Background()
	mp := memory.New()
	c := newTestClient(t, func(o *Options) {
		o.Provider = mp
		o.Disabled = true
	})
	s := NewCacheStore[branch](c, codec.JSON[branch]{})

	if err := s.Set(ctx, "k", branch{ID: "k"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if mp.Len() != 0 {
		t.Fatalf("disabled store wrote to the provider")
	}
	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("disabled store should always miss, ok=%v err=%v", ok, err)
	}
}
