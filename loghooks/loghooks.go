// Package loghooks logs refetch hook events through slog, with optional
// sampling for the high-frequency ones.
package loghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/refetch"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	StaleDropEvery uint64
	RetryEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	staleCtr atomic.Uint64
	retryCtr atomic.Uint64
}

var _ refetch.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StaleResultDropped(key string, gen uint64) {
	if h.l == nil || !sample(h.opts.StaleDropEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("refetch.stale_result_dropped",
		"key", h.redact(key),
		"gen", gen)
}

func (h *Hooks) RetryScheduled(key string, attempt int, delay time.Duration) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Debug("refetch.retry_scheduled",
		"key", h.redact(key),
		"attempt", attempt,
		"delay", delay)
}

func (h *Hooks) RetriesExhausted(key string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("refetch.retries_exhausted",
		"key", h.redact(key),
		"attempts", attempts,
		"err", err)
}

func (h *Hooks) CacheSelfHeal(storageKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("refetch.cache_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("refetch.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) OptimisticRollback(name string) {
	if h.l == nil {
		return
	}
	h.l.Info("refetch.optimistic_rollback",
		"mutator", name)
}
