package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Summary is one line of the run history file.
type Summary struct {
	Time              time.Time `json:"time"`
	RunID             string    `json:"run_id"`
	Profile           string    `json:"profile,omitempty"`
	Passed            bool      `json:"passed"`
	Interrupted       bool      `json:"interrupted"`
	Iterations        int64     `json:"iterations"`
	Failures          int64     `json:"failures"`
	CheckPassRate     float64   `json:"check_pass_rate"`
	Retries           int64     `json:"retries"`
	DelayedIterations int64     `json:"delayed_iterations"`
	P95LatencyMs      float64   `json:"p95_latency_ms"`
	DurationMs        float64   `json:"duration_ms"`
}

// NewSummary condenses r into a history line stamped with now.
func NewSummary(r Report, now time.Time) Summary {
	return Summary{
		Time:              now.UTC(),
		RunID:             r.RunID,
		Profile:           r.Profile,
		Passed:            r.Passed,
		Interrupted:       r.Interrupted,
		Iterations:        r.Stats.Total,
		Failures:          r.Stats.Failures,
		CheckPassRate:     r.Stats.CheckPassRate,
		Retries:           r.Stats.Retries,
		DelayedIterations: r.Stats.DelayedIterations,
		P95LatencyMs:      r.Stats.P95LatencyMs,
		DurationMs:        r.Stats.DurationMs,
	}
}

// AppendSummary appends s as a JSON line to path. A sibling ".lock" file
// serializes concurrent harness runs sharing the same history file.
func AppendSummary(path string, s Summary) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	line, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock summary file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summary file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	return f.Close()
}
