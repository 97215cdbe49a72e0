// Package prom exports callcache.Hooks events as Prometheus metrics.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/callcache"
)

// Adapter implements callcache.Hooks. All series are labeled by producer
// name; keys are never used as labels.
type Adapter struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	settled   *prometheus.CounterVec
	stale     *prometheus.CounterVec
	evictions *prometheus.CounterVec
	hydrated  *prometheus.CounterVec
	exported  *prometheus.CounterVec
	storeErrs *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var _ callcache.Hooks = (*Adapter)(nil)

// New registers the adapter's collectors with reg (nil => prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, append([]string{"name"}, labels...))
	}
	a := &Adapter{
		hits:      counter("hits_total", "Invocations served by an existing record"),
		misses:    counter("misses_total", "Invocations that called the producer"),
		settled:   counter("settled_total", "Live records settled, by status", "status"),
		stale:     counter("stale_settlements_total", "Settlements dropped because the record was gone"),
		evictions: counter("evictions_total", "Records removed, by reason", "reason"),
		hydrated:  counter("hydrated_records_total", "Records adopted from transfer data or a store"),
		exported:  counter("exported_records_total", "Records included in outbound snapshots"),
		storeErrs: counter("store_errors_total", "Store failures, by operation", "op"),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "settle_seconds",
			Help:        "Time from invocation to settlement",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"name", "status"}),
	}
	reg.MustRegister(a.hits, a.misses, a.settled, a.stale, a.evictions,
		a.hydrated, a.exported, a.storeErrs, a.latency)
	return a
}

func (a *Adapter) Hit(name, _ string)  { a.hits.WithLabelValues(name).Inc() }
func (a *Adapter) Miss(name, _ string) { a.misses.WithLabelValues(name).Inc() }

func (a *Adapter) Settled(name, _ string, s callcache.Status, elapsed time.Duration) {
	a.settled.WithLabelValues(name, s.String()).Inc()
	a.latency.WithLabelValues(name, s.String()).Observe(elapsed.Seconds())
}

func (a *Adapter) StaleSettlement(name, _ string) { a.stale.WithLabelValues(name).Inc() }

func (a *Adapter) Evicted(name, _ string, r callcache.EvictReason) {
	a.evictions.WithLabelValues(name, r.String()).Inc()
}

func (a *Adapter) Hydrated(name string, n int) { a.hydrated.WithLabelValues(name).Add(float64(n)) }
func (a *Adapter) Exported(name string, n int) { a.exported.WithLabelValues(name).Add(float64(n)) }

func (a *Adapter) StoreError(name, op string, _ error) {
	a.storeErrs.WithLabelValues(name, op).Inc()
}
