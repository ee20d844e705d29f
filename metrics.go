package tsnego

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    embedHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordEmbed(size int, d time.Duration, err error) {
//	    p.embedHistogram.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordAffinity is called after the affinity matrix is built.
	RecordAffinity(size, nnz, degenerate int, duration time.Duration)

	// RecordIteration is called after every optimizer iteration.
	RecordIteration(iteration int, z float64, duration time.Duration)

	// RecordEmbed is called once per Embed call, err is nil if successful.
	RecordEmbed(size int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAffinity(int, int, int, time.Duration)  {}
func (NoopMetricsCollector) RecordIteration(int, float64, time.Duration) {}
func (NoopMetricsCollector) RecordEmbed(int, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AffinityCount      atomic.Int64
	AffinityNNZ        atomic.Int64
	AffinityDegenerate atomic.Int64
	AffinityTotalNanos atomic.Int64
	IterationCount     atomic.Int64
	IterationNanos     atomic.Int64
	LastZ              atomic.Uint64 // float64 bits
	EmbedCount         atomic.Int64
	EmbedErrors        atomic.Int64
	EmbedItems         atomic.Int64
	EmbedTotalNanos    atomic.Int64
}

// RecordAffinity implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAffinity(_, nnz, degenerate int, duration time.Duration) {
	b.AffinityCount.Add(1)
	b.AffinityNNZ.Add(int64(nnz))
	b.AffinityDegenerate.Add(int64(degenerate))
	b.AffinityTotalNanos.Add(duration.Nanoseconds())
}

// RecordIteration implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIteration(_ int, z float64, duration time.Duration) {
	b.IterationCount.Add(1)
	b.IterationNanos.Add(duration.Nanoseconds())
	b.LastZ.Store(math.Float64bits(z))
}

// RecordEmbed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmbed(size int, duration time.Duration, err error) {
	b.EmbedCount.Add(1)
	b.EmbedTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EmbedErrors.Add(1)
		return
	}
	b.EmbedItems.Add(int64(size))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AffinityCount:      b.AffinityCount.Load(),
		AffinityNNZ:        b.AffinityNNZ.Load(),
		AffinityDegenerate: b.AffinityDegenerate.Load(),
		IterationCount:     b.IterationCount.Load(),
		IterationAvgNanos:  avg(b.IterationNanos.Load(), b.IterationCount.Load()),
		LastZ:              math.Float64frombits(b.LastZ.Load()),
		EmbedCount:         b.EmbedCount.Load(),
		EmbedErrors:        b.EmbedErrors.Load(),
		EmbedItems:         b.EmbedItems.Load(),
		EmbedAvgNanos:      avg(b.EmbedTotalNanos.Load(), b.EmbedCount.Load()),
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
	AffinityCount      int64
	AffinityNNZ        int64
	AffinityDegenerate int64
	IterationCount     int64
	IterationAvgNanos  int64
	LastZ              float64
	EmbedCount         int64
	EmbedErrors        int64
	EmbedItems         int64
	EmbedAvgNanos      int64
}
