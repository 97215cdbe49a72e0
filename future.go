package callcache

import (
	"context"
	"sync"
)

// Future is the handle of one asynchronous operation. It settles exactly once,
// either with a value or with an error, and is safe for concurrent use.
//
// Publishing (val, err) happens-before close(done), so reads after <-Done()
// observe the final values.
type Future[V any] struct {
	done chan struct{}
	once sync.Once
	val  V
	err  error
}

func newFuture[V any]() *Future[V] {
	return &Future[V]{done: make(chan struct{})}
}

// Resolve returns a future already fulfilled with v.
func Resolve[V any](v V) *Future[V] {
	f := newFuture[V]()
	f.complete(v, nil)
	return f
}

// Reject returns a future already rejected with err.
func Reject[V any](err error) *Future[V] {
	f := newFuture[V]()
	var zero V
	f.complete(zero, err)
	return f
}

// Go runs fn in a new goroutine and returns its future. A panic in fn rejects
// the future with *PanicError.
func Go[V any](ctx context.Context, fn func(ctx context.Context) (V, error)) *Future[V] {
	f := newFuture[V]()
	go func() {
		var (
			v   V
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero V
				f.complete(zero, &PanicError{Value: r})
				return
			}
			f.complete(v, err)
		}()
		v, err = fn(ctx)
	}()
	return f
}

func (f *Future[V]) complete(v V, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the future settles.
func (f *Future[V]) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has settled, without blocking.
func (f *Future[V]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Status reports Pending, Fulfilled or Rejected without blocking.
func (f *Future[V]) Status() Status {
	if !f.Settled() {
		return Pending
	}
	if f.err != nil {
		return Rejected
	}
	return Fulfilled
}

// Await blocks until the future settles or ctx is done. Cancelling ctx
// unblocks only this waiter; the operation keeps running.
func (f *Future[V]) Await(ctx context.Context) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error. ok is false while pending.
func (f *Future[V]) Result() (v V, ok bool, err error) {
	if !f.Settled() {
		return v, false, nil
	}
	return f.val, true, f.err
}
