package callcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureResolveReject(t *testing.T) {
	f := Resolve(7)
	if f.Status() != Fulfilled {
		t.Fatalf("status=%v want Fulfilled", f.Status())
	}
	if v, ok, err := f.Result(); !ok || err != nil || v != 7 {
		t.Fatalf("Result=(%v,%v,%v)", v, err, ok)
	}

	boom := errors.New("boom")
	r := Reject[int](boom)
	if r.Status() != Rejected {
		t.Fatalf("status=%v want Rejected", r.Status())
	}
	if _, err := r.Await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Await err=%v want boom", err)
	}
}

func TestFutureGoSettlesOnce(t *testing.T) {
	release := make(chan struct{})
	f := Go(context.Background(), func(context.Context) (string, error) {
		<-release
		return "done", nil
	})
	if f.Settled() || f.Status() != Pending {
		t.Fatalf("future settled before release")
	}
	if _, ok, _ := f.Result(); ok {
		t.Fatalf("Result ok while pending")
	}
	close(release)
	v, err := f.Await(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("Await=(%q,%v)", v, err)
	}
	f.complete("again", errors.New("late"))
	if v, _, err := f.Result(); v != "done" || err != nil {
		t.Fatalf("future settled twice: (%q,%v)", v, err)
	}
}

func TestFutureGoRecoversPanic(t *testing.T) {
	f := Go(context.Background(), func(context.Context) (int, error) {
		panic("kaboom")
	})
	_, err := f.Await(context.Background())
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "kaboom" {
		t.Fatalf("err=%v want PanicError(kaboom)", err)
	}
}

func TestFutureAwaitHonorsContext(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want deadline exceeded", err)
	}
	if f.Settled() {
		t.Fatalf("waiter cancellation settled the future")
	}
}
