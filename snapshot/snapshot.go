// Package snapshot defines the data contract used to move settled calls from a
// producing environment (a server rendering once per request) to a consuming
// one (a client adopting the results without re-running producers).
//
// Shape:
//
//	Snapshot: name -> Entry
//	Entry:    call key -> Record
//	Record:   {arguments, status, data}
//
// Only terminal records travel. The in-flight operation handle is never part
// of the contract.
package snapshot

// Status is the wire form of a settled call.
type Status string

const (
	Fulfilled Status = "fulfilled"
	Rejected  Status = "rejected"
	// Pending is understood on read but never produced by Export.
	Pending Status = "pending"
)

// Record is one settled call. For Rejected records Data holds the failure
// message. SettledAt is the settlement time in unix milliseconds; 0 means
// unknown. Consumers use it to carry staleness deadlines across the boundary.
type Record struct {
	Arguments []any  `json:"arguments" msgpack:"arguments" cbor:"arguments"`
	Status    Status `json:"status" msgpack:"status" cbor:"status"`
	Data      any    `json:"data" msgpack:"data" cbor:"data"`
	SettledAt int64  `json:"settledAt,omitempty" msgpack:"settledAt,omitempty" cbor:"settledAt,omitempty"`
}

// Terminal reports whether r is fulfilled or rejected.
func (r Record) Terminal() bool {
	return r.Status == Fulfilled || r.Status == Rejected
}

// Entry holds the records of one producer, keyed by call key.
type Entry map[string]Record

// Snapshot holds entries keyed by producer name.
type Snapshot map[string]Entry

// Merge folds other into s. Records present in both are taken from other;
// nothing in s is removed.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	if s == nil {
		s = make(Snapshot, len(other))
	}
	for name, e := range other {
		dst, ok := s[name]
		if !ok {
			dst = make(Entry, len(e))
			s[name] = dst
		}
		for k, r := range e {
			dst[k] = r
		}
	}
	return s
}

// Len returns the total number of records across all entries.
func (s Snapshot) Len() int {
	n := 0
	for _, e := range s {
		n += len(e)
	}
	return n
}
