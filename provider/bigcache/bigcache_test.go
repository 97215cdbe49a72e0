package bigcache

import (
	"context"
	"testing"
	"time"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), Config{LifeWindow: time.Minute, HardMaxCacheSizeMB: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t)

	if _, ok, err := p.Get(ctx, "calls:t:a"); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "calls:t:a", []byte("blob"), 4, 0); !ok || err != nil {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "calls:t:a")
	if err != nil || !ok || string(b) != "blob" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "calls:t:a"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "calls:t:a"); err != nil {
		t.Fatalf("Del of missing key should be a no-op: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "calls:t:a"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestRejectsZeroLifeWindow(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error")
	}
}
