package callcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/callcache/codec"
	"github.com/unkn0wn-root/callcache/internal/wire"
	"github.com/unkn0wn-root/callcache/provider"
	"github.com/unkn0wn-root/callcache/snapshot"
)

// Store persists the settled records of one name. Load reports ok=false when
// nothing is stored. Persist receives every terminal record the entry holds;
// an empty entry means "nothing left".
type Store interface {
	Load(ctx context.Context, name string) (snapshot.Entry, bool, error)
	Persist(ctx context.Context, name string, e snapshot.Entry) error
}

type StoreOptions struct {
	// Namespace isolates this store's keys within a shared provider.
	Namespace string

	Provider provider.Provider

	// Codec encodes the records of one name. Defaults to codec.JSON.
	Codec codec.Codec[snapshot.Entry]

	// TTL is passed to the provider on every write. 0 keeps entries until
	// they are overwritten or evicted by the provider.
	TTL time.Duration

	// MaxAge ignores (and deletes) blobs saved longer ago than this. 0 disables it.
	MaxAge time.Duration

	Logger Logger
}

// ProviderStore is a Store over a byte Provider. Each name is one framed blob
// under "calls:<ns>:<name>". Blobs that fail to decode are deleted on read.
type ProviderStore struct {
	ns       string
	provider provider.Provider
	codec    codec.Codec[snapshot.Entry]
	ttl      time.Duration
	maxAge   time.Duration
	log      Logger
	now      func() time.Time

	sf singleflight.Group
}

var _ Store = (*ProviderStore)(nil)

func NewProviderStore(opts StoreOptions) (*ProviderStore, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("callcache: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("callcache: namespace is required")
	}
	if opts.TTL < 0 || opts.MaxAge < 0 {
		return nil, fmt.Errorf("callcache: negative TTL or MaxAge")
	}

	s := &ProviderStore{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		ttl:      opts.TTL,
		maxAge:   opts.MaxAge,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		now:      time.Now,
	}
	if s.codec == nil {
		s.codec = codec.JSON[snapshot.Entry]{}
	}
	return s, nil
}

func (s *ProviderStore) key(name string) string {
	return "calls:" + s.ns + ":" + name
}

// Load returns the records saved for name. Concurrent loads of the same name
// share one provider round trip.
func (s *ProviderStore) Load(ctx context.Context, name string) (snapshot.Entry, bool, error) {
	type result struct {
		e  snapshot.Entry
		ok bool
	}
	v, err, _ := s.sf.Do(name, func() (any, error) {
		e, ok, err := s.load(ctx, name)
		return result{e, ok}, err
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	return r.e, r.ok, nil
}

func (s *ProviderStore) load(ctx context.Context, name string) (snapshot.Entry, bool, error) {
	k := s.key(name)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	savedAt, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		s.log.Warn("dropping corrupt blob", Fields{"key": k})
		_ = s.provider.Del(ctx, k) // self-heal
		return nil, false, nil
	}
	if s.maxAge > 0 && s.now().Sub(time.UnixMilli(savedAt)) > s.maxAge {
		s.log.Debug("dropping expired blob", Fields{"key": k, "savedAt": savedAt})
		_ = s.provider.Del(ctx, k)
		return nil, false, nil
	}
	e, err := s.codec.Decode(payload)
	if err != nil {
		s.log.Warn("dropping undecodable blob", Fields{"key": k, "err": err})
		_ = s.provider.Del(ctx, k) // self-heal
		return nil, false, nil
	}
	return e, true, nil
}

func (s *ProviderStore) Persist(ctx context.Context, name string, e snapshot.Entry) error {
	k := s.key(name)
	if len(e) == 0 {
		return s.provider.Del(ctx, k)
	}
	payload, err := s.codec.Encode(e)
	if err != nil {
		return fmt.Errorf("callcache: encode %q: %w", name, err)
	}
	blob := wire.EncodeEntry(s.now().UnixMilli(), payload)
	ok, err := s.provider.Set(ctx, k, blob, int64(len(blob)), s.ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("persist rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

// Delete removes whatever is stored for name.
func (s *ProviderStore) Delete(ctx context.Context, name string) error {
	return s.provider.Del(ctx, s.key(name))
}

func (s *ProviderStore) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}
