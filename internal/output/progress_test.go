package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/attestify/evload/internal/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressLine(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	for i := 0; i < 4; i++ {
		collector.RecordIteration(metrics.Record{Scenario: "every_60s", Status: "200", Latency: 30 * time.Millisecond, Attempts: 1, Passed: true})
	}
	collector.RecordIteration(metrics.Record{Scenario: "every_30s", Status: "500", Latency: 30 * time.Millisecond, Attempts: 2})

	line := progressLine(collector.Stats(time.Second))
	for _, want := range []string{"Iterations: 5", "Passed: 4", "Failed: 1", "Retries: 1", "every_30s"} {
		if !strings.Contains(line, want) {
			t.Errorf("progress line %q missing %q", line, want)
		}
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), 100*time.Millisecond, nil)
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}
	reporter.Stop()
}

func TestProgressReporterWrites(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.RecordIteration(metrics.Record{Scenario: "steady", Status: "200", Latency: 50 * time.Millisecond, Attempts: 1, Passed: true})

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 20*time.Millisecond, &buf)
	reporter.Start()
	time.Sleep(100 * time.Millisecond)
	reporter.Stop()

	if !strings.Contains(buf.String(), "Iterations:") {
		t.Errorf("Expected 'Iterations:' in progress output, got %q", buf.String())
	}
}
