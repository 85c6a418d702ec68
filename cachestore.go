package refetch

import (
	"context"
	"time"

	"github.com/unkn0wn-root/refetch/codec"
	"github.com/unkn0wn-root/refetch/internal/wire"
)

// CacheStore is a typed, namespaced view over the client's shared provider.
// Every fetcher owns one; stores built from the same Client read and write
// the same underlying bytes, so a Set by one call site is visible to an
// unrelated Get using the same key.
//
// Every entry is stamped with the attempt generation its writer observed,
// and Get rejects entries whose generation is no longer current. A write
// that lands after a newer attempt has begun is therefore never served,
// even when it slipped past the writer's own guard.
//
// Staleness is lazy: Get treats an entry older than its TTL as absent but
// does not delete it, the next Set simply overwrites. Corrupt or
// undecodable entries ARE deleted (self-heal), since they can never be read
// successfully again.
type CacheStore[V any] struct {
	client *Client
	codec  codec.Codec[V]
}

// NewCacheStore builds a typed view over c's provider. Most callers get one
// implicitly via NewFetcher; construct directly only to share warmed entries
// with code outside the fetch lifecycle.
func NewCacheStore[V any](c *Client, cd codec.Codec[V]) *CacheStore[V] {
	if cd == nil {
		cd = codec.JSON[V]{}
	}
	return &CacheStore[V]{client: c, codec: cd}
}

// Get returns the cached value when present and fresh.
func (s *CacheStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	c := s.client
	if !c.enabled {
		return zero, false, nil
	}
	k := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	gen, storedAt, ttl, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = c.provider.Del(ctx, k) // self-heal corrupt
		c.hooks.CacheSelfHeal(k, "corrupt")
		return zero, false, nil
	}
	if !c.reg.IsCurrent(k, gen) {
		// written by a superseded attempt; never serve it
		_ = c.provider.Del(ctx, k)
		return zero, false, nil
	}
	if ttl > 0 && time.Since(storedAt) > ttl {
		// stale: treated as absent, left in place for the next Set to overwrite
		return zero, false, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		_ = c.provider.Del(ctx, k) // self-heal
		c.hooks.CacheSelfHeal(k, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

// Set stores value under key, stamped with the key's current generation.
// ttl <= 0 uses the client default.
func (s *CacheStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	k := s.client.storageKey(key)
	return s.set(ctx, k, value, s.client.reg.Current(k), ttl)
}

// SetWithGen stores value only while gen is still the key's current
// generation; a stale writer's entry is skipped. Fetchers use this so a
// result that lost the supersession race can never repopulate the cache.
func (s *CacheStore[V]) SetWithGen(ctx context.Context, key string, value V, gen uint64, ttl time.Duration) error {
	c := s.client
	k := c.storageKey(key)
	if !c.reg.IsCurrent(k, gen) {
		c.log.Debug("cache set skipped (generation moved)", Fields{"key": key, "gen": gen})
		return nil
	}
	return s.set(ctx, k, value, gen, ttl)
}

func (s *CacheStore[V]) set(ctx context.Context, storageKey string, value V, gen uint64, ttl time.Duration) error {
	c := s.client
	if !c.enabled {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	payload, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	wireb := wire.EncodeEntry(gen, time.Now(), ttl, payload)
	ok, err := c.provider.Set(ctx, storageKey, wireb, int64(len(wireb)), ttl)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Debug("cache set rejected by provider (pressure)", Fields{"key": storageKey})
		c.hooks.ProviderSetRejected(storageKey)
	}
	return nil
}

// Delete removes the entry for key (best-effort).
func (s *CacheStore[V]) Delete(ctx context.Context, key string) error {
	c := s.client
	if !c.enabled {
		return nil
	}
	return c.provider.Del(ctx, c.storageKey(key))
}

// Clear removes every entry held by the client's provider.
func (s *CacheStore[V]) Clear(ctx context.Context) error {
	return s.client.provider.Purge(ctx)
}
