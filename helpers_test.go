package callcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/callcache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu   sync.Mutex
	m    map[string]memEntry
	fail error
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, false, p.fail
	}
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return false, p.fail
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) has(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.m[key]
	return ok
}

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func newTestRegistry(t *testing.T, opt func(*Options)) *Registry {
	t.Helper()
	opts := Options{Scheduler: InlineScheduler{}}
	if opt != nil {
		opt(&opts)
	}
	r := NewRegistry(opts)
	t.Cleanup(r.Close)
	return r
}

// manual is a producer whose futures the test settles by hand.
type manual[V any] struct {
	mu    sync.Mutex
	calls atomic.Int32
	futs  []*Future[V]
}

func (m *manual[V]) produce(_ context.Context, _ ...any) *Future[V] {
	m.calls.Add(1)
	f := newFuture[V]()
	m.mu.Lock()
	m.futs = append(m.futs, f)
	m.mu.Unlock()
	return f
}

func (m *manual[V]) resolve(i int, v V) {
	m.mu.Lock()
	f := m.futs[i]
	m.mu.Unlock()
	f.complete(v, nil)
}

func (m *manual[V]) reject(i int, err error) {
	m.mu.Lock()
	f := m.futs[i]
	m.mu.Unlock()
	var zero V
	f.complete(zero, err)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

type recordingHooks struct {
	NopHooks
	mu        sync.Mutex
	hits      int
	misses    int
	stale     int
	evicted   []EvictReason
	hydrated  int
	exported  int
	storeErrs []string
}

func (h *recordingHooks) Hit(string, string)  { h.mu.Lock(); h.hits++; h.mu.Unlock() }
func (h *recordingHooks) Miss(string, string) { h.mu.Lock(); h.misses++; h.mu.Unlock() }
func (h *recordingHooks) StaleSettlement(string, string) {
	h.mu.Lock()
	h.stale++
	h.mu.Unlock()
}
func (h *recordingHooks) Evicted(_, _ string, r EvictReason) {
	h.mu.Lock()
	h.evicted = append(h.evicted, r)
	h.mu.Unlock()
}
func (h *recordingHooks) Hydrated(_ string, n int) { h.mu.Lock(); h.hydrated += n; h.mu.Unlock() }
func (h *recordingHooks) Exported(_ string, n int) { h.mu.Lock(); h.exported += n; h.mu.Unlock() }
func (h *recordingHooks) StoreError(_, op string, _ error) {
	h.mu.Lock()
	h.storeErrs = append(h.storeErrs, op)
	h.mu.Unlock()
}

var errBoom = errors.New("boom")
