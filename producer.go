package callcache

import "context"

// Producer computes the value for one call. It returns a future: an already
// settled one for synchronous work (see Sync, Resolve, Reject), a pending one
// for asynchronous work (see Async, Go).
//
// ctx is detached from the invoker's cancellation: evicting or abandoning a
// call never cancels the work behind it.
type Producer[V any] func(ctx context.Context, args ...any) *Future[V]

// Async adapts a blocking function into a Producer that runs it in its own
// goroutine.
func Async[V any](fn func(ctx context.Context, args ...any) (V, error)) Producer[V] {
	return func(ctx context.Context, args ...any) *Future[V] {
		return Go(ctx, func(ctx context.Context) (V, error) {
			return fn(ctx, args...)
		})
	}
}

// Sync adapts a pure synchronous function into a Producer whose futures are
// settled on return.
func Sync[V any](fn func(args ...any) V) Producer[V] {
	return func(_ context.Context, args ...any) *Future[V] {
		return Resolve(fn(args...))
	}
}
