package callcache

import (
	"context"
	"sync"
	"testing"
)

type line struct {
	level, msg string
	f          Fields
}

type captureLogger struct {
	mu    sync.Mutex
	lines []line
}

func (c *captureLogger) add(level, msg string, f Fields) {
	c.mu.Lock()
	c.lines = append(c.lines, line{level, msg, f})
	c.mu.Unlock()
}

func (c *captureLogger) Debug(msg string, f Fields) { c.add("debug", msg, f) }
func (c *captureLogger) Info(msg string, f Fields)  { c.add("info", msg, f) }
func (c *captureLogger) Warn(msg string, f Fields)  { c.add("warn", msg, f) }
func (c *captureLogger) Error(msg string, f Fields) { c.add("error", msg, f) }

func TestWithFieldsMergesWithoutMutating(t *testing.T) {
	c := &captureLogger{}
	base := Fields{"name": "getUser"}
	l := withFields(c, base)

	l.Warn("store load failed", Fields{"err": "down", "name": "override"})
	l.Debug("plain", nil)

	if len(c.lines) != 2 {
		t.Fatalf("want 2 lines, got %d", len(c.lines))
	}
	if got := c.lines[0].f; got["err"] != "down" || got["name"] != "override" {
		t.Fatalf("fields %v", got)
	}
	if c.lines[1].f["name"] != "getUser" {
		t.Fatalf("base field missing: %v", c.lines[1].f)
	}
	if len(base) != 1 || base["name"] != "getUser" {
		t.Fatalf("base mutated: %v", base)
	}
	if _, ok := withFields(NopLogger{}, base).(NopLogger); !ok {
		t.Fatalf("nop logger should stay nop")
	}
}

func TestEntryLinesCarryName(t *testing.T) {
	c := &captureLogger{}
	r := newTestRegistry(t, func(o *Options) { o.Logger = c })
	tok := New(r, Config[int]{Name: "getUser"}, Sync(func(...any) int { return 1 }))
	_, _ = tok.Await(context.Background(), 7)
	tok.Evict(7)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.msg == "call evicted" {
			if l.f["name"] != "getUser" || l.f["key"] != "[7]" {
				t.Fatalf("fields %v", l.f)
			}
			return
		}
	}
	t.Fatalf("no eviction line in %v", c.lines)
}
