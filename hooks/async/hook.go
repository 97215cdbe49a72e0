// Package asynchook moves callcache.Hooks calls off the caller's goroutine.
// Events are queued to a fixed worker pool and dropped when the queue is
// full, so a slow hook can never stall an invocation.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	reg := callcache.NewRegistry(callcache.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/callcache"
)

type Hooks struct {
	inner   callcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ callcache.Hooks = (*Hooks)(nil)

func New(inner callcache.Hooks, workers, qlen int) *Hooks {
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

// Close stops accepting events and waits for queued ones to run.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full or closed queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) Hit(name, key string)  { h.try(func() { h.inner.Hit(name, key) }) }
func (h *Hooks) Miss(name, key string) { h.try(func() { h.inner.Miss(name, key) }) }
func (h *Hooks) Settled(name, key string, s callcache.Status, d time.Duration) {
	h.try(func() { h.inner.Settled(name, key, s, d) })
}
func (h *Hooks) StaleSettlement(name, key string) {
	h.try(func() { h.inner.StaleSettlement(name, key) })
}
func (h *Hooks) Evicted(name, key string, r callcache.EvictReason) {
	h.try(func() { h.inner.Evicted(name, key, r) })
}
func (h *Hooks) Hydrated(name string, n int) { h.try(func() { h.inner.Hydrated(name, n) }) }
func (h *Hooks) Exported(name string, n int) { h.try(func() { h.inner.Exported(name, n) }) }
func (h *Hooks) StoreError(name, op string, err error) {
	h.try(func() { h.inner.StoreError(name, op, err) })
}
