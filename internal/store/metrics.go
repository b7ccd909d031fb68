package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
)

// Metrics holds the cache instrumentation on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	opsTotal    *prometheus.CounterVec
	opsDuration *prometheus.HistogramVec
	lookups     *prometheus.CounterVec
}

func NewMetrics(backend string) *Metrics {
	registry := prometheus.NewRegistry()

	opsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "noun_cache",
			Subsystem:   "store",
			Name:        "operations_total",
			Help:        "Total cache store operations by operation and outcome.",
			ConstLabels: prometheus.Labels{"backend": backend},
		},
		[]string{"op", "outcome"},
	)
	opsDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "noun_cache",
			Subsystem:   "store",
			Name:        "operation_duration_seconds",
			Help:        "Cache store operation duration in seconds by operation.",
			Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			ConstLabels: prometheus.Labels{"backend": backend},
		},
		[]string{"op"},
	)
	lookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "noun_cache",
			Subsystem:   "store",
			Name:        "lookups_total",
			Help:        "Exists lookups by result (hit or miss).",
			ConstLabels: prometheus.Labels{"backend": backend},
		},
		[]string{"result"},
	)

	registry.MustRegister(opsTotal, opsDuration, lookups)

	return &Metrics{
		registry:    registry,
		opsTotal:    opsTotal,
		opsDuration: opsDuration,
		lookups:     lookups,
	}
}

// Registry exposes the registry for scraping or tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics in the node_exporter textfile
// format, for one-shot runs that have no scrape endpoint.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observe(op string, started time.Time, err error) {
	m.opsTotal.WithLabelValues(op, Outcome(err)).Inc()
	m.opsDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) lookup(hit bool) {
	if hit {
		m.lookups.WithLabelValues("hit").Inc()
		return
	}
	m.lookups.WithLabelValues("miss").Inc()
}

// Instrument wraps rs so every call is counted and timed in m.
// A nil m returns rs unchanged.
func Instrument(rs ResultStore, m *Metrics) ResultStore {
	if m == nil {
		return rs
	}
	return &instrumented{next: rs, m: m}
}

type instrumented struct {
	next ResultStore
	m    *Metrics
}

func (i *instrumented) Exists(ctx context.Context, fp fingerprint.Fingerprint) (bool, error) {
	started := time.Now()
	ok, err := i.next.Exists(ctx, fp)
	i.m.observe("exists", started, err)
	if err == nil {
		i.m.lookup(ok)
	}
	return ok, err
}

func (i *instrumented) Get(ctx context.Context, fp fingerprint.Fingerprint) (*record.Record, error) {
	started := time.Now()
	rec, err := i.next.Get(ctx, fp)
	i.m.observe("get", started, err)
	return rec, err
}

func (i *instrumented) Put(ctx context.Context, fp fingerprint.Fingerprint, rec *record.Record, mode Mode) error {
	started := time.Now()
	err := i.next.Put(ctx, fp, rec, mode)
	i.m.observe("put_"+mode.String(), started, err)
	return err
}

func (i *instrumented) Bootstrap(ctx context.Context) error {
	started := time.Now()
	err := i.next.Bootstrap(ctx)
	i.m.observe("bootstrap", started, err)
	return err
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
