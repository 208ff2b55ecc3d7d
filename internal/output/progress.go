package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/attestify/evload/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	p.ticker.Stop()
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, progressLine(p.collector.Stats(p.collector.Elapsed())))
		case <-p.done:
			return
		}
	}
}

func progressLine(stats metrics.Stats) string {
	line := fmt.Sprintf("\rIterations: %d | Passed: %d | Failed: %d | Retries: %d | Delayed: %d | IPS: %.1f",
		stats.Total, stats.Successes, stats.Failures, stats.Retries, stats.DelayedIterations, stats.RequestsPerSec)
	if stats.Total > 0 {
		line += fmt.Sprintf(" | P95 %.1fms", stats.P95LatencyMs)
	}
	if active := activeScenario(stats); active != "" {
		line += " | " + active
	}
	return line
}

// activeScenario names the most recently activated scenario, which is the
// current phase of a sequential schedule.
func activeScenario(stats metrics.Stats) string {
	if len(stats.Scenarios) == 0 {
		return ""
	}
	return stats.Scenarios[len(stats.Scenarios)-1].Name
}
