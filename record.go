package callcache

import (
	"time"

	"github.com/unkn0wn-root/callcache/snapshot"
)

// Status is the lifecycle stage of a call record.
type Status int

const (
	Pending Status = iota
	Fulfilled
	Rejected
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s Status) wire() snapshot.Status {
	switch s {
	case Fulfilled:
		return snapshot.Fulfilled
	case Rejected:
		return snapshot.Rejected
	default:
		return snapshot.Pending
	}
}

// State is a read-only copy of one call record, as seen by a renderer:
//   - Pending:   not ready; wait on Future or a Subscribe notification.
//   - Fulfilled: Value is ready.
//   - Rejected:  Err is the failure.
type State[V any] struct {
	Key    string
	Args   []any
	Status Status
	Value  V
	Err    error
	Future *Future[V]
	// Hydrated is set on records adopted from transfer data or a Store.
	Hydrated bool
}

// call is the mutable record. Every field except fut is guarded by the owning
// entry's mu.
type call[V any] struct {
	args        []any
	status      Status
	val         V
	err         error
	fut         *Future[V]
	started     time.Time
	settledAt   time.Time
	hydrated    bool
	transferred bool
}

func (c *call[V]) state(key string) State[V] {
	return State[V]{
		Key:      key,
		Args:     c.args,
		Status:   c.status,
		Value:    c.val,
		Err:      c.err,
		Future:   c.fut,
		Hydrated: c.hydrated,
	}
}

func (c *call[V]) terminal() bool { return c.status != Pending }

func (c *call[V]) record() snapshot.Record {
	r := snapshot.Record{Arguments: c.args, Status: c.status.wire()}
	if !c.settledAt.IsZero() {
		r.SettledAt = c.settledAt.UnixMilli()
	}
	if c.status == Rejected {
		r.Data = c.err.Error()
	} else {
		r.Data = c.val
	}
	return r
}
