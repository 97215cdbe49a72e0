package callcache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/callcache/snapshot"
)

// Environment selects how a registry relates to transfer data and to the
// ambient default scope.
type Environment int

const (
	// Server registries produce transfer data and have no default scope:
	// every request must carry its own registry.
	Server Environment = iota
	// Client registries consume transfer data staged by Hydrate on entry
	// creation and may fall back to Default.
	Client
)

func (e Environment) String() string {
	if e == Client {
		return "client"
	}
	return "server"
}

// Handle identifies a token. Two tokens with the same name have different
// handles but share one entry per registry.
type Handle uint64

var handles atomic.Uint64

func nextHandle() Handle { return Handle(handles.Add(1)) }

type Options struct {
	Environment Environment

	// Staging holds transfer data for a Client registry. Defaults to
	// DefaultStaging in Client registries and to a private staging area
	// otherwise.
	Staging *Staging

	// Store persists settled records per name. Optional; a token Config may
	// override it.
	Store Store

	// Scheduler runs listener notifications. Defaults to a single background
	// queue owned by the registry.
	Scheduler Scheduler

	Logger Logger
	Hooks  Hooks

	// StoreTimeout bounds each Store call. Defaults to 5s.
	StoreTimeout time.Duration
}

// Registry owns the entries for one scope: one request on a server, the
// whole program on a client.
type Registry struct {
	env          Environment
	staging      *Staging
	store        Store
	sched        Scheduler
	queue        *queueScheduler
	log          Logger
	hooks        Hooks
	storeTimeout time.Duration

	mu       sync.RWMutex
	byName   map[string]entry
	byHandle map[Handle]entry

	sf     singleflight.Group
	closed atomic.Bool
}

// NewRegistry returns an empty registry. Registries scoped to one request or
// render should be Closed when done; Close releases deadline timers and the
// default notification worker.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		env:          opts.Environment,
		staging:      opts.Staging,
		store:        opts.Store,
		sched:        opts.Scheduler,
		log:          opts.Logger,
		hooks:        opts.Hooks,
		storeTimeout: coalesce(opts.StoreTimeout, defaultStoreTimeout),
		byName:       make(map[string]entry),
		byHandle:     make(map[Handle]entry),
	}
	if r.log == nil {
		r.log = NopLogger{}
	}
	if r.hooks == nil {
		r.hooks = NopHooks{}
	}
	if r.staging == nil {
		if r.env == Client {
			r.staging = DefaultStaging()
		} else {
			r.staging = NewStaging()
		}
	}
	if r.sched == nil {
		r.queue = newQueueScheduler(r.log)
		r.sched = r.queue
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide Client registry. It lives for the rest of
// the program and is never reset.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry(Options{Environment: Client})
	})
	return defaultReg
}

func (r *Registry) Environment() Environment { return r.env }

// lookup returns the entry for a token if it already exists.
func (r *Registry) lookup(h Handle, name string) entry {
	r.mu.RLock()
	e, ok := r.byHandle[h]
	if !ok {
		e = r.byName[name]
	}
	r.mu.RUnlock()
	if e != nil && !ok {
		r.bind(h, e)
	}
	return e
}

func (r *Registry) bind(h Handle, e entry) {
	r.mu.Lock()
	r.byHandle[h] = e
	r.mu.Unlock()
}

// resolve returns the entry for a token, creating it with build on first use.
// Creation is coalesced per name; a new entry is seeded from staged transfer
// data (Client only) or otherwise from its Store before anyone can see it.
func (r *Registry) resolve(ctx context.Context, h Handle, name string, build func() entry) entry {
	if e := r.lookup(h, name); e != nil {
		return e
	}
	v, _, _ := r.sf.Do(name, func() (any, error) {
		r.mu.RLock()
		e, ok := r.byName[name]
		r.mu.RUnlock()
		if ok {
			return e, nil
		}

		e = build()
		if n := r.take(e); n > 0 {
			r.log.Debug("hydrated entry from transfer data", Fields{"name": name, "records": n})
		} else {
			e.load(ctx)
		}

		r.mu.Lock()
		r.byName[name] = e
		r.mu.Unlock()

		// A Hydrate that ran while e was being built missed it in byName.
		if n := r.take(e); n > 0 {
			r.log.Debug("hydrated entry staged during creation", Fields{"name": name, "records": n})
		}
		return e, nil
	})
	e := v.(entry)
	r.bind(h, e)
	return e
}

func (r *Registry) take(e entry) int {
	if r.env != Client {
		return 0
	}
	data, ok := r.staging.Take(e.entryName())
	if !ok {
		return 0
	}
	return e.adopt(data, true)
}

// Names lists the entries created so far, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

func (r *Registry) entries() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry, 0, len(r.byName))
	for _, e := range r.byName {
		out = append(out, e)
	}
	return out
}

// Export collects every terminal record not exported before, grouped by
// name. Exported records are marked and never exported again. Pending records
// are left out; the consumer re-invokes them.
func (r *Registry) Export() snapshot.Snapshot {
	out := make(snapshot.Snapshot)
	for _, e := range r.entries() {
		if data := e.exportNew(); len(data) > 0 {
			out[e.entryName()] = data
		}
	}
	return out
}

// Hydrate stages transfer data. Entries that already exist adopt their part
// at once and notify their listeners; the rest is consumed when the matching
// entry is created.
func (r *Registry) Hydrate(snap snapshot.Snapshot) {
	if len(snap) == 0 {
		return
	}
	r.staging.Merge(snap)

	r.mu.RLock()
	var live []entry
	for name := range snap {
		if e, ok := r.byName[name]; ok {
			live = append(live, e)
		}
	}
	r.mu.RUnlock()

	for _, e := range live {
		data, ok := r.staging.Take(e.entryName())
		if !ok {
			continue
		}
		n := e.adopt(data, true)
		r.log.Debug("hydrated live entry", Fields{"name": e.entryName(), "records": n})
	}
}

// Close stops every deadline timer and the notification queue the registry
// owns. Queued notifications still run. Tokens keep working against a closed
// registry, but deadlines no longer fire and, unless Options.Scheduler was
// supplied, subscribers receive no further notifications.
func (r *Registry) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	for _, e := range r.entries() {
		e.close()
	}
	if r.queue != nil {
		r.queue.Close()
	}
}
