package callcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/callcache/codec"
	"github.com/unkn0wn-root/callcache/snapshot"
)

func newClient(t *testing.T, h Hooks) *Registry {
	return newTestRegistry(t, func(o *Options) {
		o.Environment = Client
		o.Staging = NewStaging()
		o.Hooks = h
	})
}

func serverUsers(t *testing.T) (*Registry, *Token[user]) {
	r := newTestRegistry(t, nil)
	tok := New(r, Config[user]{Name: "getUser"}, Async(func(_ context.Context, args ...any) (user, error) {
		if args[0] == "boom" {
			return user{}, errBoom
		}
		return user{ID: args[0].(int), Name: "x"}, nil
	}))
	return r, tok
}

// wireTrip moves a snapshot through JSON, as a real transfer would.
func wireTrip(t *testing.T, s snapshot.Snapshot) snapshot.Snapshot {
	t.Helper()
	c := codec.JSON[snapshot.Snapshot]{}
	b, err := c.Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestTransferRoundTrip(t *testing.T) {
	ctx := context.Background()
	server, getUser := serverUsers(t)
	if _, err := getUser.Await(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := getUser.Await(ctx, "boom"); !errors.Is(err, errBoom) {
		t.Fatal(err)
	}

	snap := wireTrip(t, server.Export())
	if snap.Len() != 2 {
		t.Fatalf("want 2 exported records, got %d", snap.Len())
	}

	h := &recordingHooks{}
	client := newClient(t, h)
	client.Hydrate(snap)

	var calls atomic.Int32
	clientTok := New(client, Config[user]{Name: "getUser"}, Sync(func(...any) user {
		calls.Add(1)
		return user{}
	}))

	got, err := clientTok.Read(ctx, 7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != (user{ID: 7, Name: "x"}) {
		t.Fatalf("got %+v", got)
	}
	st, _ := clientTok.Peek(7)
	if !st.Hydrated || st.Status != Fulfilled {
		t.Fatalf("state %+v", st)
	}

	_, err = clientTok.Read(ctx, "boom")
	var te *TransferredError
	if !errors.As(err, &te) || te.Message != "boom" {
		t.Fatalf("want transferred rejection, got %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("producer ran %d times on the client", n)
	}
	if h.hydrated != 2 {
		t.Fatalf("hydrated hook: %d", h.hydrated)
	}
}

func TestStagedDataIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	server, getUser := serverUsers(t)
	_, _ = getUser.Await(ctx, 7)

	st := NewStaging()
	st.Merge(server.Export())

	first := newTestRegistry(t, func(o *Options) { o.Environment = Client; o.Staging = st })
	tok := New(first, Config[user]{Name: "getUser"}, Sync(func(...any) user { return user{Name: "fresh"} }))
	if u, _ := tok.Read(ctx, 7); u.Name != "x" {
		t.Fatalf("first entry adopts staged data: %+v", u)
	}
	if st.Len() != 0 {
		t.Fatalf("staging should be empty, has %d", st.Len())
	}

	second := newTestRegistry(t, func(o *Options) { o.Environment = Client; o.Staging = st })
	tok2 := New(second, Config[user]{Name: "getUser"}, Sync(func(...any) user { return user{Name: "fresh"} }))
	if u, _ := tok2.Read(ctx, 7); u.Name != "fresh" {
		t.Fatalf("data must not be adopted twice: %+v", u)
	}
}

func TestExportSkipsPendingAndAlreadyExported(t *testing.T) {
	ctx := context.Background()
	h := &recordingHooks{}
	r := newTestRegistry(t, func(o *Options) { o.Hooks = h })
	m := &manual[int]{}
	tok := New(r, Config[int]{Name: "n"}, m.produce)

	_, _ = tok.Invoke(ctx, 1)
	_, _ = tok.Invoke(ctx, 2)
	m.resolve(0, 10)
	waitFor(t, time.Second, func() bool { st, _ := tok.Peek(1); return st.Status == Fulfilled })

	snap := r.Export()
	if snap.Len() != 1 {
		t.Fatalf("only terminal records travel, got %d", snap.Len())
	}
	rec := snap["n"]["[1]"]
	if rec.Status != snapshot.Fulfilled || rec.Data != 10 {
		t.Fatalf("record %+v", rec)
	}
	if again := r.Export(); again.Len() != 0 {
		t.Fatalf("records are exported once, got %d", again.Len())
	}

	m.resolve(1, 20)
	waitFor(t, time.Second, func() bool { st, _ := tok.Peek(2); return st.Status == Fulfilled })
	if later := r.Export(); later.Len() != 1 || later["n"]["[2]"].Data != 20 {
		t.Fatalf("newly settled records are exported later: %+v", later)
	}
	if h.exported != 2 {
		t.Fatalf("exported hook: %d", h.exported)
	}
}

func TestAdoptedRecordsAreNotReexported(t *testing.T) {
	ctx := context.Background()
	server, getUser := serverUsers(t)
	_, _ = getUser.Await(ctx, 7)

	client := newClient(t, nil)
	client.Hydrate(wireTrip(t, server.Export()))
	tok := New(client, Config[user]{Name: "getUser"}, Sync(func(args ...any) user { return user{ID: args[0].(int)} }))
	_, _ = tok.Await(ctx, 7)
	_, _ = tok.Await(ctx, 8)

	out := client.Export()
	if out.Len() != 1 || out["getUser"]["[8]"].Status != snapshot.Fulfilled {
		t.Fatalf("only locally produced records export: %+v", out)
	}
}

func TestHydrateLiveEntryNotifies(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, nil)
	m := &manual[user]{}
	tok := New(client, Config[user]{Name: "getUser"}, m.produce)

	var notified atomic.Int32
	if _, err := tok.Subscribe(func() { notified.Add(1) }); err != nil {
		t.Fatal(err)
	}
	pending, _ := tok.Invoke(ctx, 7)
	before := notified.Load()

	client.Hydrate(snapshot.Snapshot{"getUser": {
		"[7]": {Arguments: []any{7}, Status: snapshot.Fulfilled, Data: map[string]any{"id": 7, "name": "x"}},
		"[9]": {Arguments: []any{9}, Status: snapshot.Pending},
	}})
	if notified.Load() != before+1 {
		t.Fatalf("hydrating a live entry must notify")
	}
	if u, err := tok.Read(ctx, 7); err != nil || u.Name != "x" {
		t.Fatalf("adopted value: %+v %v", u, err)
	}
	if _, ok := tok.Peek(9); ok {
		t.Fatalf("pending records are never adopted")
	}

	// The replaced pending call settles into its own future only.
	m.resolve(0, user{ID: 7, Name: "late"})
	if u, _ := pending.Await(ctx); u.Name != "late" {
		t.Fatalf("got %+v", u)
	}
	if u, _ := tok.Read(ctx, 7); u.Name != "x" {
		t.Fatalf("stale settlement overwrote adopted record: %+v", u)
	}
}

func TestServerIgnoresStagedData(t *testing.T) {
	ctx := context.Background()
	st := NewStaging()
	st.Merge(snapshot.Snapshot{"getUser": {
		"[7]": {Arguments: []any{7}, Status: snapshot.Fulfilled, Data: map[string]any{"id": 7, "name": "x"}},
	}})
	r := newTestRegistry(t, func(o *Options) { o.Staging = st })
	tok := New(r, Config[user]{Name: "getUser"}, Sync(func(...any) user { return user{Name: "server"} }))
	if u, _ := tok.Read(ctx, 7); u.Name != "server" {
		t.Fatalf("server producers always run: %+v", u)
	}
	if st.Len() != 1 {
		t.Fatalf("server must not consume staging")
	}
}

func TestHydrateSkipsValuesOfTheWrongShape(t *testing.T) {
	ctx := context.Background()
	client := newClient(t, nil)
	client.Hydrate(snapshot.Snapshot{"n": {
		"[1]": {Arguments: []any{1}, Status: snapshot.Fulfilled, Data: "not a number"},
		"[2]": {Arguments: []any{2}, Status: snapshot.Fulfilled, Data: 2.0},
	}})
	tok := New(client, Config[int]{Name: "n"}, Sync(func(args ...any) int { return -1 }))
	if v, _ := tok.Read(ctx, 2); v != 2 {
		t.Fatalf("coerced float: %d", v)
	}
	if v, _ := tok.Read(ctx, 1); v != -1 {
		t.Fatalf("incompatible record should be skipped: %d", v)
	}
}

// blockingStore holds Load until release is closed.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Load(context.Context, string) (snapshot.Entry, bool, error) {
	close(s.entered)
	<-s.release
	return nil, false, nil
}

func (s *blockingStore) Persist(context.Context, string, snapshot.Entry) error { return nil }

func TestHydrateDuringEntryCreation(t *testing.T) {
	ctx := context.Background()
	st := NewStaging()
	bs := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	client := newTestRegistry(t, func(o *Options) {
		o.Environment = Client
		o.Staging = st
		o.Store = bs
		o.StoreTimeout = time.Second
	})
	var calls atomic.Int32
	tok := New(client, Config[int]{Name: "n"}, Sync(func(...any) int { calls.Add(1); return 0 }))

	type result struct {
		v   int
		err error
	}
	out := make(chan result, 1)
	go func() {
		v, err := tok.Await(ctx, 1)
		out <- result{v, err}
	}()

	<-bs.entered
	client.Hydrate(snapshot.Snapshot{"n": {
		"[1]": {Arguments: []any{1}, Status: snapshot.Fulfilled, Data: 5},
	}})
	close(bs.release)

	select {
	case res := <-out:
		if res.err != nil || res.v != 5 {
			t.Fatalf("got %d %v", res.v, res.err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return")
	}
	if calls.Load() != 0 {
		t.Fatalf("producer ran despite transfer data")
	}
	if st.Len() != 0 {
		t.Fatalf("transfer data stayed staged")
	}
}
