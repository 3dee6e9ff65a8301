package gdbscan

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational counters from the engine. Calls are
// made concurrently from worker goroutines; implementations must be safe for
// concurrent use. Metrics have no effect on clustering results.
type MetricsCollector interface {
	// RecordPoint is called once per processed point.
	RecordPoint(core bool)

	// RecordCoreCreated is called when a new cluster forest record is allocated.
	RecordCoreCreated()

	// RecordMerge is called when two previously distinct clusters are joined.
	RecordMerge()

	// RecordRun is called after each Run with the number of points in the
	// universe, the wall time, and the run error (nil on success).
	RecordRun(points int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPoint(bool)                    {}
func (NoopMetricsCollector) RecordCoreCreated()                  {}
func (NoopMetricsCollector) RecordMerge()                        {}
func (NoopMetricsCollector) RecordRun(int, time.Duration, error) {}

// BasicMetricsCollector keeps simple in-memory counters.
type BasicMetricsCollector struct {
	Points        atomic.Int64
	CorePoints    atomic.Int64
	CoresCreated  atomic.Int64
	Merges        atomic.Int64
	Runs          atomic.Int64
	RunErrors     atomic.Int64
	RunTotalNanos atomic.Int64
}

func (b *BasicMetricsCollector) RecordPoint(core bool) {
	b.Points.Add(1)
	if core {
		b.CorePoints.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordCoreCreated() { b.CoresCreated.Add(1) }
func (b *BasicMetricsCollector) RecordMerge()       { b.Merges.Add(1) }

func (b *BasicMetricsCollector) RecordRun(_ int, duration time.Duration, err error) {
	b.Runs.Add(1)
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// MetricsStats is a point-in-time copy of BasicMetricsCollector.
type MetricsStats struct {
	Points       int64
	CorePoints   int64
	CoresCreated int64
	Merges       int64
	Runs         int64
	RunErrors    int64
	AvgRunTime   time.Duration
}

// GetStats returns a snapshot of the collected counters.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	s := MetricsStats{
		Points:       b.Points.Load(),
		CorePoints:   b.CorePoints.Load(),
		CoresCreated: b.CoresCreated.Load(),
		Merges:       b.Merges.Load(),
		Runs:         b.Runs.Load(),
		RunErrors:    b.RunErrors.Load(),
	}
	if s.Runs > 0 {
		s.AvgRunTime = time.Duration(b.RunTotalNanos.Load() / s.Runs)
	}
	return s
}
