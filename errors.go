package callcache

import (
	"errors"
	"fmt"
)

var (
	// ErrUnbound is wrapped by UnboundError.
	ErrUnbound = errors.New("callcache: producer not bound")
	// ErrPending is wrapped by SuspendError.
	ErrPending = errors.New("callcache: call pending")
	// ErrMissingContext is wrapped by MissingContextError.
	ErrMissingContext = errors.New("callcache: no registry in context")
	// ErrNilFuture rejects a call whose producer returned a nil future.
	ErrNilFuture = errors.New("callcache: producer returned nil future")
)

// UnboundError is returned when a token is invoked before a producer was
// attached with Inject.
type UnboundError struct {
	Name string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("callcache: inject the %q producer before invoking it", e.Name)
}

func (e *UnboundError) Unwrap() error { return ErrUnbound }

// SuspendError is the "not ready" side of the Read protocol. Wait on
// Future.Done() (or a Subscribe notification) and read again.
type SuspendError struct {
	Name   string
	Key    string
	Future interface{ Done() <-chan struct{} }
}

func (e *SuspendError) Error() string {
	return fmt.Sprintf("callcache: %s%s is pending", e.Name, e.Key)
}

func (e *SuspendError) Unwrap() error { return ErrPending }

// MissingContextError is returned by ResolveRegistry when no registry is attached to
// the context and the environment has no default scope to fall back to.
type MissingContextError struct {
	Env Environment
}

func (e *MissingContextError) Error() string {
	if e.Env == Server {
		return "callcache: no registry in context; attach one per request with WithRegistry " +
			"(a serving environment has no default scope)"
	}
	return "callcache: no registry in context; attach one with WithRegistry"
}

func (e *MissingContextError) Unwrap() error { return ErrMissingContext }

// TypeMismatchError is returned when two tokens share a name but disagree on
// the value type.
type TypeMismatchError struct {
	Name string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("callcache: %q is bound to %s, not %s", e.Name, e.Got, e.Want)
}

// PanicError rejects a call whose producer panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("callcache: producer panicked: %v", e.Value)
}

// TransferredError is the failure carried by a rejected record adopted from
// transfer data or a Store. Only the message survives the boundary.
type TransferredError struct {
	Message string
}

func (e *TransferredError) Error() string { return e.Message }
