// Package metrics provides in-memory performance instrumentation for
// cladeview's hot paths: observation parsing, forest construction, color
// assignment, and export.
//
// Metrics are collected with atomic operations and are enabled by
// default; set CLADE_METRICS=0 to disable, or CLADE_METRICS=1 to also
// print a timing report on exit.
//
// Usage:
//
//	func expensiveOperation() {
//	    defer metrics.Timer(metrics.BuildForest)()
//	    // ... operation code
//	}
package metrics

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// enabled controls whether metrics are collected.
// Defaults to true unless CLADE_METRICS=0 is set.
var enabled = os.Getenv("CLADE_METRICS") != "0"

// reportRequested mirrors an explicit CLADE_METRICS=1, which asks for a
// timing report on exit in addition to collection.
var reportRequested = os.Getenv("CLADE_METRICS") == "1"

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled
}

// ReportRequested returns whether CLADE_METRICS=1 asked for a timing
// report to be printed when the program finishes.
func ReportRequested() bool {
	return reportRequested
}

// SetEnabled allows programmatic control of metrics collection.
func SetEnabled(e bool) {
	enabled = e
}

// TimingMetric tracks timing statistics for a named operation.
// All methods are thread-safe using atomic operations.
type TimingMetric struct {
	name    string
	count   int64
	totalNs int64
	maxNs   int64
	minNs   int64 // 0 means not set
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record records a single timing measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled {
		return
	}
	ns := d.Nanoseconds()

	atomic.AddInt64(&m.count, 1)
	atomic.AddInt64(&m.totalNs, ns)

	for {
		old := atomic.LoadInt64(&m.maxNs)
		if ns <= old || atomic.CompareAndSwapInt64(&m.maxNs, old, ns) {
			break
		}
	}

	for {
		old := atomic.LoadInt64(&m.minNs)
		if old != 0 && ns >= old {
			break
		}
		if atomic.CompareAndSwapInt64(&m.minNs, old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string {
	return m.name
}

// Count returns the number of recorded measurements.
func (m *TimingMetric) Count() int64 {
	return atomic.LoadInt64(&m.count)
}

// Reset clears all recorded measurements.
func (m *TimingMetric) Reset() {
	atomic.StoreInt64(&m.count, 0)
	atomic.StoreInt64(&m.totalNs, 0)
	atomic.StoreInt64(&m.maxNs, 0)
	atomic.StoreInt64(&m.minNs, 0)
}

// TimingStats holds a snapshot of timing statistics.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Stats returns all timing statistics at once.
func (m *TimingMetric) Stats() TimingStats {
	count := atomic.LoadInt64(&m.count)
	totalNs := atomic.LoadInt64(&m.totalNs)
	maxNs := atomic.LoadInt64(&m.maxNs)
	minNs := atomic.LoadInt64(&m.minNs)

	var avgNs int64
	if count > 0 {
		avgNs = totalNs / count
	}

	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(totalNs) / 1e6,
		AvgMs:   float64(avgNs) / 1e6,
		MaxMs:   float64(maxNs) / 1e6,
		MinMs:   float64(minNs) / 1e6,
	}
}

// Timer returns a function that records elapsed time when called.
// Use with defer for automatic timing:
//
//	defer metrics.Timer(metrics.BuildForest)()
func Timer(m *TimingMetric) func() {
	if !enabled || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// Global timing metrics for cladeview operations.
var (
	ParseObservations = newTimingMetric("parse_observations")
	BuildForest       = newTimingMetric("build_forest")
	ColorAssignment   = newTimingMetric("color_assignment")
	AnalyzeForest     = newTimingMetric("analyze_forest")
	SnapshotRender    = newTimingMetric("snapshot_render")
	SQLiteExport      = newTimingMetric("sqlite_export")
)

// AllTimingMetrics returns all registered timing metrics.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		ParseObservations,
		BuildForest,
		ColorAssignment,
		AnalyzeForest,
		SnapshotRender,
		SQLiteExport,
	}
}

// ResetAll resets all timing metrics.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
}

// AllTimingStats returns stats for metrics that recorded at least one
// measurement.
func AllTimingStats() []TimingStats {
	all := AllTimingMetrics()
	stats := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}

// WriteReport writes the collected timing stats to w, one line per
// metric. Writes nothing when no measurements were recorded.
func WriteReport(w io.Writer) {
	stats := AllTimingStats()
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w, "timings:")
	for _, s := range stats {
		fmt.Fprintf(w, "  %-20s count=%d total=%.2fms avg=%.3fms min=%.3fms max=%.3fms\n",
			s.Name, s.Count, s.TotalMs, s.AvgMs, s.MinMs, s.MaxMs)
	}
}
