// Package refetch is a client-side request lifecycle manager: it issues
// asynchronous read operations, caches their results with a TTL, discards
// results of superseded attempts, retries transient failures with backoff,
// and drives optimistic writes with rollback.
//
// Components:
//   - Provider: byte store with TTL (in-process map by default; Ristretto,
//     BigCache, Redis adapters available).
//   - Codec[V]: (de)serializes V <-> []byte for cache storage.
//   - generation.Registry: per-key attempt counter. Starting a new attempt
//     for a key invalidates the previous one; a stale attempt's result is
//     discarded no matter when (or how successfully) it lands.
//   - retry.Policy: pluggable backoff (linear by default).
//
// A Client bundles one provider, one registry, and defaults; every Fetcher,
// Mutator, and Paginator built from the same Client shares its cache.
//
// Read flow:
//
//	c, _ := refetch.New(refetch.Options{Namespace: "branches"})
//	f := refetch.NewFetcher(c, "branch-1", fetchBranch, refetch.FetchOptions[Branch]{
//	    TTL: 5 * time.Second,
//	})
//	b, err := f.Execute(ctx) // cache-fresh hit returns without calling fetchBranch
//
// The consumer-visible state always reflects the most recently initiated
// attempt's outcome, even when an earlier attempt resolves later.
package refetch
