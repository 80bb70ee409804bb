// Package metrics implements the run-completion accounting and reporting
// functionality used by the scheduler and orchestrator. It tracks
// completed, failed, and archived run counts and generates the final
// sweep summary.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Metrics collects run-completion counters for one sweep execution.
type Metrics struct {
	runsCompleted int64
	runsFailed    int64
	runsArchived  int64

	startTime time.Time
}

// NewMetrics creates a new Metrics instance with the clock started.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordCompleted increments the completed-runs counter.
func (m *Metrics) RecordCompleted() {
	atomic.AddInt64(&m.runsCompleted, 1)
}

// RecordFailed increments the failed-runs counter.
func (m *Metrics) RecordFailed() {
	atomic.AddInt64(&m.runsFailed, 1)
}

// RecordArchived increments the archived-runs counter.
func (m *Metrics) RecordArchived() {
	atomic.AddInt64(&m.runsArchived, 1)
}

// Report is the final sweep summary.
type Report struct {
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	RunsCompleted int64         `json:"runsCompleted"`
	RunsFailed    int64         `json:"runsFailed"`
	RunsArchived  int64         `json:"runsArchived"`
	Duration      time.Duration `json:"duration"`
	Throughput    float64       `json:"throughput"` // completed runs per second
}

// GenerateReport produces the final Report for a sweep.
func (m *Metrics) GenerateReport() Report {
	endTime := time.Now()
	duration := endTime.Sub(m.startTime)

	completed := atomic.LoadInt64(&m.runsCompleted)
	var throughput float64
	if duration > 0 {
		throughput = float64(completed) / duration.Seconds()
	}

	return Report{
		StartTime:     m.startTime,
		EndTime:       endTime,
		RunsCompleted: completed,
		RunsFailed:    atomic.LoadInt64(&m.runsFailed),
		RunsArchived:  atomic.LoadInt64(&m.runsArchived),
		Duration:      duration,
		Throughput:    throughput,
	}
}

// MarshalJSON implements json.Marshaler, formatting the duration as a
// human-readable string for the notifier payload.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String returns a human-readable summary for console output.
func (r Report) String() string {
	return fmt.Sprintf(
		"Sweep completed in %s\n"+
			"Runs completed: %d\n"+
			"Runs failed: %d\n"+
			"Runs archived: %d\n"+
			"Throughput: %.2f runs/sec",
		r.Duration,
		r.RunsCompleted,
		r.RunsFailed,
		r.RunsArchived,
		r.Throughput,
	)
}
