// Package otel records callcache.Hooks events with the OpenTelemetry metric
// API. Wire it to any MeterProvider; the package never configures exporters.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/callcache"
)

const scope = "github.com/unkn0wn-root/callcache"

type Adapter struct {
	invocations metric.Int64Counter
	settled     metric.Int64Counter
	evictions   metric.Int64Counter
	transferred metric.Int64Counter
	storeErrs   metric.Int64Counter
	duration    metric.Float64Histogram
}

var _ callcache.Hooks = (*Adapter)(nil)

func New(mp metric.MeterProvider) (*Adapter, error) {
	m := mp.Meter(scope)

	invocations, err := m.Int64Counter("callcache.invocations",
		metric.WithDescription("Invocations, by result (hit or miss)"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	settled, err := m.Int64Counter("callcache.settled",
		metric.WithDescription("Settlements, by status; stale ones are marked stale=true"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	evictions, err := m.Int64Counter("callcache.evictions",
		metric.WithDescription("Records removed, by reason"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	transferred, err := m.Int64Counter("callcache.transferred",
		metric.WithDescription("Records moved across the transfer boundary, by direction"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, err
	}
	storeErrs, err := m.Int64Counter("callcache.store.errors",
		metric.WithDescription("Store failures, by operation"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}
	duration, err := m.Float64Histogram("callcache.settle.duration_ms",
		metric.WithDescription("Time from invocation to settlement in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Adapter{
		invocations: invocations,
		settled:     settled,
		evictions:   evictions,
		transferred: transferred,
		storeErrs:   storeErrs,
		duration:    duration,
	}, nil
}

func attrs(name string, kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{attribute.String("callcache.name", name)}, kv...)...)
}

// Hooks carry no context; measurements use Background.
var bg = context.Background()

func (a *Adapter) Hit(name, _ string) {
	a.invocations.Add(bg, 1, attrs(name, attribute.String("result", "hit")))
}

func (a *Adapter) Miss(name, _ string) {
	a.invocations.Add(bg, 1, attrs(name, attribute.String("result", "miss")))
}

func (a *Adapter) Settled(name, _ string, s callcache.Status, elapsed time.Duration) {
	opt := attrs(name, attribute.String("status", s.String()))
	a.settled.Add(bg, 1, opt)
	a.duration.Record(bg, float64(elapsed.Microseconds())/1000, opt)
}

func (a *Adapter) StaleSettlement(name, _ string) {
	a.settled.Add(bg, 1, attrs(name, attribute.Bool("stale", true)))
}

func (a *Adapter) Evicted(name, _ string, r callcache.EvictReason) {
	a.evictions.Add(bg, 1, attrs(name, attribute.String("reason", r.String())))
}

func (a *Adapter) Hydrated(name string, n int) {
	a.transferred.Add(bg, int64(n), attrs(name, attribute.String("direction", "in")))
}

func (a *Adapter) Exported(name string, n int) {
	a.transferred.Add(bg, int64(n), attrs(name, attribute.String("direction", "out")))
}

func (a *Adapter) StoreError(name, op string, _ error) {
	a.storeErrs.Add(bg, 1, attrs(name, attribute.String("op", op)))
}
