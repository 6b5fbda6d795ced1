// Package prom exports celltrie map metrics to Prometheus.
//
//	c, err := prom.New(prometheus.DefaultRegisterer)
//	m := celltrie.New[string, int](celltrie.WithMetricsCollector(c))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/celltrie"
)

var _ celltrie.MetricsCollector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace   string
	constLabels prometheus.Labels
	buckets     []float64
}

// WithNamespace sets the metric namespace. The default is "celltrie".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithConstLabels attaches labels to every metric, for example to tell maps
// apart.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.constLabels = labels
	}
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// Collector implements celltrie.MetricsCollector with Prometheus counters
// and histograms.
type Collector struct {
	latency   *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	restarts  *prometheus.CounterVec
	snapshots *prometheus.CounterVec

	// Resolved children, so the hot path skips label lookups.
	putLatency, getLatency, removeLatency, subtreeLatency prometheus.Observer

	putStored, putLoaded      prometheus.Counter
	getHit, getMiss           prometheus.Counter
	removeHit, removeMiss     prometheus.Counter
	snapshotRO, snapshotWrite prometheus.Counter
}

// New creates a Collector and registers it with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer, optFns ...Option) (*Collector, error) {
	o := options{
		namespace: "celltrie",
		buckets:   []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 1e-2},
	}

	for _, fn := range optFns {
		fn(&o)
	}

	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of map operations",
			ConstLabels: o.constLabels,
			Buckets:     o.buckets,
		}, []string{"op"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "operations_total",
			Help:        "Map operations by outcome",
			ConstLabels: o.constLabels,
		}, []string{"op", "result"}),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "restarts_total",
			Help:        "Operations restarted from the root after losing a race",
			ConstLabels: o.constLabels,
		}, []string{"op"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "snapshots_total",
			Help:        "Snapshots taken",
			ConstLabels: o.constLabels,
		}, []string{"read_only"}),
	}

	c.putLatency = c.latency.WithLabelValues("put")
	c.getLatency = c.latency.WithLabelValues("get")
	c.removeLatency = c.latency.WithLabelValues("remove")
	c.subtreeLatency = c.latency.WithLabelValues("subtree")

	c.putStored = c.ops.WithLabelValues("put", "stored")
	c.putLoaded = c.ops.WithLabelValues("put", "loaded")
	c.getHit = c.ops.WithLabelValues("get", "hit")
	c.getMiss = c.ops.WithLabelValues("get", "miss")
	c.removeHit = c.ops.WithLabelValues("remove", "removed")
	c.removeMiss = c.ops.WithLabelValues("remove", "absent")
	c.snapshotRO = c.snapshots.WithLabelValues("true")
	c.snapshotWrite = c.snapshots.WithLabelValues("false")

	if reg != nil {
		for _, m := range []prometheus.Collector{c.latency, c.ops, c.restarts, c.snapshots} {
			if err := reg.Register(m); err != nil {
				return nil, err
			}
		}
	}

	return c, nil
}

// RecordPut implements celltrie.MetricsCollector.
func (c *Collector) RecordPut(d time.Duration, loaded bool) {
	c.putLatency.Observe(d.Seconds())

	if loaded {
		c.putLoaded.Inc()
	} else {
		c.putStored.Inc()
	}
}

// RecordGet implements celltrie.MetricsCollector.
func (c *Collector) RecordGet(d time.Duration, found bool) {
	c.getLatency.Observe(d.Seconds())

	if found {
		c.getHit.Inc()
	} else {
		c.getMiss.Inc()
	}
}

// RecordRemove implements celltrie.MetricsCollector.
func (c *Collector) RecordRemove(d time.Duration, removed bool) {
	c.removeLatency.Observe(d.Seconds())

	if removed {
		c.removeHit.Inc()
	} else {
		c.removeMiss.Inc()
	}
}

// RecordRestart implements celltrie.MetricsCollector.
func (c *Collector) RecordRestart(op string) {
	c.restarts.WithLabelValues(op).Inc()
}

// RecordSnapshot implements celltrie.MetricsCollector.
func (c *Collector) RecordSnapshot(readOnly bool) {
	if readOnly {
		c.snapshotRO.Inc()
	} else {
		c.snapshotWrite.Inc()
	}
}

// RecordSubtree implements celltrie.MetricsCollector.
func (c *Collector) RecordSubtree(d time.Duration) {
	c.subtreeLatency.Observe(d.Seconds())
}
