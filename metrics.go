package celltrie

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// package metrics/prom for a Prometheus implementation.
//
// Methods are called on the hot path and must be safe for concurrent use.
type MetricsCollector interface {
	// RecordPut is called after each put-style operation. loaded reports
	// whether the key was bound before.
	RecordPut(duration time.Duration, loaded bool)

	// RecordGet is called after each lookup.
	RecordGet(duration time.Duration, found bool)

	// RecordRemove is called after each remove-style operation.
	RecordRemove(duration time.Duration, removed bool)

	// RecordRestart is called whenever an operation lost a race and
	// restarted from the root.
	RecordRestart(op string)

	// RecordSnapshot is called after each snapshot.
	RecordSnapshot(readOnly bool)

	// RecordSubtree is called after each subtree query.
	RecordSubtree(duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, bool)    {}
func (NoopMetricsCollector) RecordGet(time.Duration, bool)    {}
func (NoopMetricsCollector) RecordRemove(time.Duration, bool) {}
func (NoopMetricsCollector) RecordRestart(string)             {}
func (NoopMetricsCollector) RecordSnapshot(bool)              {}
func (NoopMetricsCollector) RecordSubtree(time.Duration)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Counter groups written by different operations sit on separate cache
// lines.
type BasicMetricsCollector struct {
	PutCount      atomic.Int64
	PutLoaded     atomic.Int64
	PutTotalNanos atomic.Int64
	_             cpu.CacheLinePad

	GetCount      atomic.Int64
	GetHits       atomic.Int64
	GetTotalNanos atomic.Int64
	_             cpu.CacheLinePad

	RemoveCount      atomic.Int64
	RemoveHits       atomic.Int64
	RemoveTotalNanos atomic.Int64
	_                cpu.CacheLinePad

	Restarts          atomic.Int64
	SnapshotCount     atomic.Int64
	ReadOnlySnapshots atomic.Int64
	SubtreeCount      atomic.Int64
	SubtreeTotalNanos atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(duration time.Duration, loaded bool) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())

	if loaded {
		b.PutLoaded.Add(1)
	}
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(duration time.Duration, found bool) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())

	if found {
		b.GetHits.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, removed bool) {
	b.RemoveCount.Add(1)
	b.RemoveTotalNanos.Add(duration.Nanoseconds())

	if removed {
		b.RemoveHits.Add(1)
	}
}

// RecordRestart implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestart(string) {
	b.Restarts.Add(1)
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(readOnly bool) {
	if readOnly {
		b.ReadOnlySnapshots.Add(1)
		return
	}

	b.SnapshotCount.Add(1)
}

// RecordSubtree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSubtree(duration time.Duration) {
	b.SubtreeCount.Add(1)
	b.SubtreeTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:          b.PutCount.Load(),
		PutLoaded:         b.PutLoaded.Load(),
		PutAvgNanos:       avg(b.PutTotalNanos.Load(), b.PutCount.Load()),
		GetCount:          b.GetCount.Load(),
		GetHits:           b.GetHits.Load(),
		GetAvgNanos:       avg(b.GetTotalNanos.Load(), b.GetCount.Load()),
		RemoveCount:       b.RemoveCount.Load(),
		RemoveHits:        b.RemoveHits.Load(),
		RemoveAvgNanos:    avg(b.RemoveTotalNanos.Load(), b.RemoveCount.Load()),
		Restarts:          b.Restarts.Load(),
		SnapshotCount:     b.SnapshotCount.Load(),
		ReadOnlySnapshots: b.ReadOnlySnapshots.Load(),
		SubtreeCount:      b.SubtreeCount.Load(),
		SubtreeAvgNanos:   avg(b.SubtreeTotalNanos.Load(), b.SubtreeCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}

	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount          int64
	PutLoaded         int64
	PutAvgNanos       int64
	GetCount          int64
	GetHits           int64
	GetAvgNanos       int64
	RemoveCount       int64
	RemoveHits        int64
	RemoveAvgNanos    int64
	Restarts          int64
	SnapshotCount     int64
	ReadOnlySnapshots int64
	SubtreeCount      int64
	SubtreeAvgNanos   int64
}
