// Package callcache implements a per-function call cache with single-flight
// semantics: for a producer and a set of call arguments at most one operation
// is in flight, its lifecycle (pending -> fulfilled | rejected) is tracked, and
// subscribers are notified on every transition.
//
// Components:
//   - Token[V]: handle bound to one producer (Invoke, Await, Read, GetState,
//     Evict, Subscribe, Inject).
//   - Registry: owns one entry per producer name; one per application scope
//     (Default for a process, NewRegistry per request on a server).
//   - Future[V]: the operation handle stored in pending records.
//   - Staging / Export / Hydrate: transfer of settled calls across a compute
//     boundary (see package snapshot for the wire contract).
//   - Store: optional load/persist collaborator (ProviderStore over a
//     provider.Provider and a codec).
//
// Keys:
//
//	JSON of the argument list, e.g. [1] and ["1"] are distinct calls.
//	Keys over MaxKeyLength become sha256:<16 hex>.
//
// Suspension protocol:
//
//	v, err := tok.Read(ctx, id)
//	var s *callcache.SuspendError
//	if errors.As(err, &s) {
//	    <-s.Future.Done() // retry the render after notify
//	}
package callcache
