package callcache

import (
	"sync"

	"github.com/unkn0wn-root/callcache/snapshot"
)

// Staging holds transfer data until the matching entry claims it. Each name
// is handed out once.
type Staging struct {
	mu   sync.Mutex
	data snapshot.Snapshot
}

func NewStaging() *Staging {
	return &Staging{data: make(snapshot.Snapshot)}
}

var (
	stagingOnce    sync.Once
	defaultStaging *Staging
)

// DefaultStaging is the process-wide staging area used by Client registries
// that do not bring their own.
func DefaultStaging() *Staging {
	stagingOnce.Do(func() { defaultStaging = NewStaging() })
	return defaultStaging
}

// Merge adds snap to the staged data. Records under the same name and key
// are replaced by the ones in snap.
func (s *Staging) Merge(snap snapshot.Snapshot) {
	s.mu.Lock()
	s.data = s.data.Merge(snap)
	s.mu.Unlock()
}

// Take removes and returns the data staged for name.
func (s *Staging) Take(name string) (snapshot.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[name]
	if ok {
		delete(s.data, name)
	}
	return e, ok && len(e) > 0
}

// Len reports how many names are still staged.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
