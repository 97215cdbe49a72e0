package callcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/callcache/snapshot"
)

// entry is the type-erased view of a functionEntry the registry works with.
type entry interface {
	entryName() string
	valueType() string
	// load pulls persisted records from the entry's Store, if any.
	load(ctx context.Context)
	// adopt replaces records with settled ones built from data.
	adopt(data snapshot.Entry, transferred bool) int
	// exportNew returns terminal records not exported before and marks them.
	exportNew() snapshot.Entry
	close()
}

// functionEntry groups every call record of one producer name along with its
// listeners and deadline timers.
type functionEntry[V any] struct {
	name     string
	r        *Registry
	log      Logger
	store    Store
	deadline func(V) time.Duration

	mu        sync.Mutex
	calls     map[string]*call[V]
	listeners map[uint64]Listener
	nextID    uint64
	timers    map[string]*time.Timer
	closed    bool

	scheduled atomic.Bool

	// persistMu orders snapshot+Persist pairs so an older snapshot never
	// lands after a newer one.
	persistMu sync.Mutex
}

var _ entry = (*functionEntry[struct{}])(nil)

func newFunctionEntry[V any](r *Registry, name string, cfg Config[V]) *functionEntry[V] {
	e := &functionEntry[V]{
		name:      name,
		r:         r,
		log:       withFields(r.log, Fields{"name": name}),
		store:     cfg.Store,
		calls:     make(map[string]*call[V]),
		listeners: make(map[uint64]Listener),
		timers:    make(map[string]*time.Timer),
	}
	if e.store == nil {
		e.store = r.store
	}
	switch {
	case cfg.DeadlineFunc != nil:
		e.deadline = cfg.DeadlineFunc
	case cfg.Deadline > 0:
		d := cfg.Deadline
		e.deadline = func(V) time.Duration { return d }
	}
	return e
}

func (e *functionEntry[V]) entryName() string { return e.name }

func (e *functionEntry[V]) valueType() string { return typeName[V]() }

func typeName[V any]() string {
	return fmt.Sprintf("%T", (*V)(nil))[1:]
}

// begin returns the record under key, creating a pending one when absent.
// The check and the store happen under one lock: a concurrent invoker either
// sees the pending record or creates it, never both.
func (e *functionEntry[V]) begin(key string, args []any) (*call[V], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.calls[key]; ok {
		return c, false
	}
	c := &call[V]{
		args:    append([]any{}, args...),
		status:  Pending,
		fut:     newFuture[V](),
		started: time.Now(),
	}
	e.stopTimerLocked(key)
	e.calls[key] = c
	return c, true
}

// run calls the producer for a freshly created pending record and wires its
// settlement.
func (e *functionEntry[V]) run(ctx context.Context, key string, c *call[V], p Producer[V]) {
	e.notify()

	out := produce(ctx, p, c.args)
	if out.Settled() {
		v, _, err := out.Result()
		e.settle(key, c, v, err)
		return
	}
	go func() {
		<-out.Done()
		v, _, err := out.Result()
		e.settle(key, c, v, err)
	}()
}

func produce[V any](ctx context.Context, p Producer[V], args []any) (out *Future[V]) {
	defer func() {
		if r := recover(); r != nil {
			out = Reject[V](&PanicError{Value: r})
		}
	}()
	out = p(context.WithoutCancel(ctx), args...)
	if out == nil {
		out = Reject[V](ErrNilFuture)
	}
	return out
}

// settle moves c to its terminal state. The cache is only touched when key
// still maps to c; a record evicted or replaced meanwhile settles for whoever
// holds its future and is otherwise dropped.
func (e *functionEntry[V]) settle(key string, c *call[V], v V, err error) {
	status := Fulfilled
	if err != nil {
		status = Rejected
	}

	e.mu.Lock()
	c.status = status
	c.settledAt = time.Now()
	if err != nil {
		c.err = err
	} else {
		c.val = v
	}
	c.fut.complete(v, err)
	live := e.calls[key] == c
	if live && status == Fulfilled && e.deadline != nil {
		if d := e.deadline(v); d > 0 {
			e.armLocked(key, c, d)
		}
	}
	e.mu.Unlock()

	if !live {
		e.r.hooks.StaleSettlement(e.name, key)
		e.log.Debug("dropped stale settlement", Fields{"key": key})
		return
	}
	e.r.hooks.Settled(e.name, key, status, time.Since(c.started))
	e.notify()
	e.persist()
}

func (e *functionEntry[V]) armLocked(key string, c *call[V], d time.Duration) {
	e.stopTimerLocked(key)
	if e.closed {
		return
	}
	e.timers[key] = time.AfterFunc(d, func() { e.expire(key, c) })
}

func (e *functionEntry[V]) stopTimerLocked(key string) {
	if t, ok := e.timers[key]; ok {
		t.Stop()
		delete(e.timers, key)
	}
}

// expire removes c when its deadline fires, unless it was already replaced.
func (e *functionEntry[V]) expire(key string, c *call[V]) {
	e.mu.Lock()
	if e.calls[key] != c {
		e.mu.Unlock()
		return
	}
	delete(e.calls, key)
	delete(e.timers, key)
	e.mu.Unlock()

	e.r.hooks.Evicted(e.name, key, EvictDeadline)
	e.log.Debug("call expired", Fields{"key": key})
	e.notify()
	e.persist()
}

func (e *functionEntry[V]) evict(key string) bool {
	e.mu.Lock()
	_, ok := e.calls[key]
	if ok {
		delete(e.calls, key)
		e.stopTimerLocked(key)
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	e.r.hooks.Evicted(e.name, key, EvictManual)
	e.log.Debug("call evicted", Fields{"key": key})
	e.notify()
	e.persist()
	return true
}

func (e *functionEntry[V]) state(key string) (State[V], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.calls[key]
	if !ok {
		return State[V]{}, false
	}
	return c.state(key), true
}

func (e *functionEntry[V]) size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *functionEntry[V]) subscribe(l Listener) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// notify schedules one flush; further calls before it runs are absorbed.
func (e *functionEntry[V]) notify() {
	if e.scheduled.CompareAndSwap(false, true) {
		e.r.sched.Schedule(e.flush)
	}
}

func (e *functionEntry[V]) flush() {
	e.scheduled.Store(false)

	e.mu.Lock()
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ls := make([]Listener, len(ids))
	for i, id := range ids {
		ls[i] = e.listeners[id]
	}
	e.mu.Unlock()

	for _, l := range ls {
		e.safeCall(l)
	}
}

func (e *functionEntry[V]) safeCall(l Listener) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("listener panicked", Fields{"panic": r})
		}
	}()
	l()
}

func (e *functionEntry[V]) adopt(data snapshot.Entry, transferred bool) int {
	now := time.Now()
	adopted := make(map[string]*call[V], len(data))
	ttl := make(map[string]time.Duration)
	for key, rec := range data {
		if !rec.Terminal() {
			continue // pending is not transferable; the consumer re-invokes
		}
		c, err := settledCall[V](rec)
		if err != nil {
			e.log.Warn("skipped record that does not fit the value type",
				Fields{"key": key, "type": typeName[V](), "err": err})
			continue
		}
		if d, ok := e.remaining(c, now); ok {
			if d <= 0 {
				e.log.Debug("skipped record past its deadline", Fields{"key": key})
				continue
			}
			ttl[key] = d
		}
		c.transferred = transferred
		adopted[key] = c
	}
	if len(adopted) == 0 {
		return 0
	}

	e.mu.Lock()
	for key, c := range adopted {
		e.stopTimerLocked(key)
		e.calls[key] = c
		if d, ok := ttl[key]; ok {
			e.armLocked(key, c, d)
		}
	}
	e.mu.Unlock()

	e.r.hooks.Hydrated(e.name, len(adopted))
	e.notify()
	return len(adopted)
}

// remaining reports how much of its deadline an adopted record has left.
// ok is false when no deadline applies. Records without a settlement time
// get the full deadline from now.
func (e *functionEntry[V]) remaining(c *call[V], now time.Time) (time.Duration, bool) {
	if e.deadline == nil || c.status != Fulfilled {
		return 0, false
	}
	d := e.deadline(c.val)
	if d <= 0 {
		return 0, false
	}
	if c.settledAt.IsZero() {
		return d, true
	}
	return d - now.Sub(c.settledAt), true
}

func settledCall[V any](rec snapshot.Record) (*call[V], error) {
	c := &call[V]{args: rec.Arguments, hydrated: true}
	if rec.SettledAt > 0 {
		c.settledAt = time.UnixMilli(rec.SettledAt)
	}
	if rec.Status == snapshot.Rejected {
		c.status = Rejected
		c.err = &TransferredError{Message: fmt.Sprint(rec.Data)}
		c.fut = Reject[V](c.err)
		return c, nil
	}
	v, err := coerce[V](rec.Data)
	if err != nil {
		return nil, err
	}
	c.status = Fulfilled
	c.val = v
	c.fut = Resolve(v)
	return c, nil
}

// coerce converts decoded transfer data into V. Values that already are a V
// pass through; anything else is re-encoded through JSON.
func coerce[V any](data any) (V, error) {
	var v V
	if data == nil {
		return v, nil
	}
	if typed, ok := data.(V); ok {
		return typed, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}

func (e *functionEntry[V]) exportNew() snapshot.Entry {
	e.mu.Lock()
	out := make(snapshot.Entry)
	for key, c := range e.calls {
		if !c.terminal() || c.transferred {
			continue
		}
		out[key] = c.record()
		c.transferred = true
	}
	e.mu.Unlock()

	if len(out) > 0 {
		e.r.hooks.Exported(e.name, len(out))
	}
	return out
}

func (e *functionEntry[V]) terminalRecords() snapshot.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(snapshot.Entry, len(e.calls))
	for key, c := range e.calls {
		if c.terminal() {
			out[key] = c.record()
		}
	}
	return out
}

func (e *functionEntry[V]) load(ctx context.Context) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.r.storeTimeout)
	defer cancel()
	data, ok, err := e.store.Load(ctx, e.name)
	if err != nil {
		e.r.hooks.StoreError(e.name, "load", err)
		e.log.Warn("store load failed", Fields{"err": err})
		return
	}
	if !ok {
		return
	}
	n := e.adopt(data, false)
	e.log.Debug("loaded calls from store", Fields{"records": n})
}

func (e *functionEntry[V]) persist() {
	if e.store == nil {
		return
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	data := e.terminalRecords()
	ctx, cancel := context.WithTimeout(context.Background(), e.r.storeTimeout)
	defer cancel()
	if err := e.store.Persist(ctx, e.name, data); err != nil {
		e.r.hooks.StoreError(e.name, "persist", err)
		e.log.Warn("store persist failed", Fields{"err": err})
	}
}

func (e *functionEntry[V]) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for key := range e.timers {
		e.stopTimerLocked(key)
	}
}
