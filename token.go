package callcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Listener is told that something in an entry changed. It carries no
// payload; read the state you care about again.
type Listener func()

// Config describes a token. The first token to create an entry in a registry
// fixes its Deadline, DeadlineFunc and Store for every token sharing the name.
type Config[V any] struct {
	// Name is shared by tokens that must hit the same entry; it is also the
	// transfer key. Defaults to "token-<handle>".
	Name string

	// Disabled runs the producer on every invocation without recording it.
	Disabled bool

	// Hash overrides the default JSON-based key derivation.
	Hash Hasher

	// Deadline evicts a fulfilled record this long after it settled.
	Deadline time.Duration
	// DeadlineFunc computes the deadline from the fulfilled value; it takes
	// precedence over Deadline. A non-positive result keeps the record.
	DeadlineFunc func(V) time.Duration

	// Store overrides the registry Store for this name.
	Store Store
}

// Token is a cacheable producer: invocations with equal arguments share one
// call record per registry.
type Token[V any] struct {
	r      *Registry
	handle Handle
	name   string
	cfg    Config[V]

	mu sync.RWMutex
	p  Producer[V]
}

// New creates a token bound to p. A nil registry means Default.
func New[V any](r *Registry, cfg Config[V], p Producer[V]) *Token[V] {
	if r == nil {
		r = Default()
	}
	h := nextHandle()
	return &Token[V]{
		r:      r,
		handle: h,
		name:   coalesce(cfg.Name, fmt.Sprintf("token-%d", h)),
		cfg:    cfg,
		p:      p,
	}
}

// Declare creates a token with no producer yet; see Inject.
func Declare[V any](r *Registry, cfg Config[V]) *Token[V] {
	return New[V](r, cfg, nil)
}

func (t *Token[V]) Name() string        { return t.name }
func (t *Token[V]) Handle() Handle      { return t.handle }
func (t *Token[V]) Registry() *Registry { return t.r }

// Inject binds (or rebinds) the producer. Records already made by the old
// producer stay until evicted.
func (t *Token[V]) Inject(p Producer[V]) *Token[V] {
	t.mu.Lock()
	t.p = p
	t.mu.Unlock()
	return t
}

func (t *Token[V]) producer() Producer[V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}

func (t *Token[V]) key(args []any) string { return DeriveKey(args, t.cfg.Hash) }

func (t *Token[V]) build() entry { return newFunctionEntry[V](t.r, t.name, t.cfg) }

func (t *Token[V]) entry(ctx context.Context) (*functionEntry[V], error) {
	e := t.r.resolve(ctx, t.handle, t.name, t.build)
	fe, ok := e.(*functionEntry[V])
	if !ok {
		return nil, &TypeMismatchError{Name: t.name, Want: typeName[V](), Got: e.valueType()}
	}
	return fe, nil
}

func (t *Token[V]) existing() *functionEntry[V] {
	fe, _ := t.r.lookup(t.handle, t.name).(*functionEntry[V])
	return fe
}

// Invoke returns the future for args, calling the producer only when no
// record exists for their key. The producer gets ctx without its
// cancellation: one caller giving up must not fail the shared call.
func (t *Token[V]) Invoke(ctx context.Context, args ...any) (*Future[V], error) {
	p := t.producer()
	if p == nil {
		return nil, &UnboundError{Name: t.name}
	}
	e, err := t.entry(ctx)
	if err != nil {
		return nil, err
	}
	if t.cfg.Disabled {
		return produce(ctx, p, args), nil
	}

	key := t.key(args)
	c, created := e.begin(key, args)
	if !created {
		t.r.hooks.Hit(t.name, key)
		return c.fut, nil
	}
	t.r.hooks.Miss(t.name, key)
	t.r.log.Debug("calling producer", Fields{"name": t.name, "key": key})
	e.run(ctx, key, c, p)
	return c.fut, nil
}

// Await invokes and waits for the outcome or ctx.
func (t *Token[V]) Await(ctx context.Context, args ...any) (V, error) {
	f, err := t.Invoke(ctx, args...)
	if err != nil {
		var zero V
		return zero, err
	}
	return f.Await(ctx)
}

// GetState invokes and returns a copy of the record for args.
func (t *Token[V]) GetState(ctx context.Context, args ...any) (State[V], error) {
	f, err := t.Invoke(ctx, args...)
	if err != nil {
		return State[V]{}, err
	}
	key := t.key(args)
	if !t.cfg.Disabled {
		if e := t.existing(); e != nil {
			if st, ok := e.state(key); ok && st.Future == f {
				return st, nil
			}
		}
	}
	// Not recorded (disabled) or already evicted: the future is all we have.
	st := State[V]{Key: key, Args: args, Status: f.Status(), Future: f}
	if v, ok, err := f.Result(); ok {
		st.Value, st.Err = v, err
	}
	return st, nil
}

// Read is the synchronous rendering protocol: the value, the failure, or a
// *SuspendError while the call is pending.
func (t *Token[V]) Read(ctx context.Context, args ...any) (V, error) {
	st, err := t.GetState(ctx, args...)
	var zero V
	if err != nil {
		return zero, err
	}
	switch st.Status {
	case Fulfilled:
		return st.Value, nil
	case Rejected:
		return zero, st.Err
	default:
		return zero, &SuspendError{Name: t.name, Key: st.Key, Future: st.Future}
	}
}

// Peek returns the record for args without invoking anything.
func (t *Token[V]) Peek(args ...any) (State[V], bool) {
	e := t.existing()
	if e == nil {
		return State[V]{}, false
	}
	return e.state(t.key(args))
}

// Len reports how many records the token's entry holds.
func (t *Token[V]) Len() int {
	e := t.existing()
	if e == nil {
		return 0
	}
	return e.size()
}

// Evict drops the record for args so the next invocation calls the producer
// again. A settlement still in flight for the dropped record is discarded.
func (t *Token[V]) Evict(args ...any) *Token[V] {
	if e := t.existing(); e != nil {
		e.evict(t.key(args))
	}
	return t
}

// Invalidate is Evict for use with Mutation.
func (t *Token[V]) Invalidate(args ...any) { t.Evict(args...) }

// Subscribe registers l for change notifications on the token's entry,
// creating the entry if needed. The returned func unsubscribes and may be
// called more than once.
func (t *Token[V]) Subscribe(l Listener) (func(), error) {
	e, err := t.entry(context.Background())
	if err != nil {
		return nil, err
	}
	return e.subscribe(l), nil
}
