// Package sloghooks logs callcache.Hooks events through log/slog. Hot events
// (Hit, Miss, Settled) can be sampled; keys are redacted by default since
// they are derived from call arguments.
package sloghooks

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/callcache"
	"github.com/unkn0wn-root/callcache/internal/util"
)

type Options struct {
	// Log one in N events; 0/1 = log all.
	HitEvery     uint64
	MissEvery    uint64
	SettledEvery uint64
	// Redact maps call keys before logging. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr     atomic.Uint64
	missCtr    atomic.Uint64
	settledCtr atomic.Uint64
}

var _ callcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.ShortHash("sha256", k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(name, key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("callcache.hit", "name", name, "key", h.redact(key))
}

func (h *Hooks) Miss(name, key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("callcache.miss", "name", name, "key", h.redact(key))
}

func (h *Hooks) Settled(name, key string, s callcache.Status, elapsed time.Duration) {
	if h.l == nil || !sample(h.opts.SettledEvery, &h.settledCtr) {
		return
	}
	level := slog.LevelDebug
	if s == callcache.Rejected {
		level = slog.LevelInfo
	}
	h.l.Log(context.Background(), level, "callcache.settled",
		"name", name,
		"key", h.redact(key),
		"status", s.String(),
		"elapsed", elapsed)
}

func (h *Hooks) StaleSettlement(name, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("callcache.stale_settlement", "name", name, "key", h.redact(key))
}

func (h *Hooks) Evicted(name, key string, r callcache.EvictReason) {
	if h.l == nil {
		return
	}
	h.l.Debug("callcache.evicted", "name", name, "key", h.redact(key), "reason", r.String())
}

func (h *Hooks) Hydrated(name string, n int) {
	if h.l == nil {
		return
	}
	h.l.Info("callcache.hydrated", "name", name, "records", n)
}

func (h *Hooks) Exported(name string, n int) {
	if h.l == nil {
		return
	}
	h.l.Debug("callcache.exported", "name", name, "records", n)
}

func (h *Hooks) StoreError(name, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("callcache.store_error", "name", name, "op", op, "err", err)
}
