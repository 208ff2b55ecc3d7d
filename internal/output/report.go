package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/attestify/evload/internal/metrics"
	"github.com/attestify/evload/internal/runner"
	"github.com/attestify/evload/internal/threshold"
)

// Format selects how a Report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Report is the end-of-run summary shared by every output format.
type Report struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	Profile     string           `json:"profile,omitempty" yaml:"profile,omitempty"`
	Passed      bool             `json:"passed" yaml:"passed"`
	Interrupted bool             `json:"interrupted" yaml:"interrupted"`
	Warmup      WarmupReport     `json:"warmup" yaml:"warmup"`
	Stats       metrics.Stats    `json:"stats" yaml:"stats"`
	Thresholds  []ThresholdEntry `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// WarmupReport mirrors runner.WarmupResult with serializable durations.
type WarmupReport struct {
	Attempts   int     `json:"attempts" yaml:"attempts"`
	Successes  int     `json:"successes" yaml:"successes"`
	DurationMs float64 `json:"duration_ms" yaml:"duration_ms"`
}

// ThresholdEntry is one evaluated threshold.
type ThresholdEntry struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
	Message   string  `json:"message,omitempty" yaml:"message,omitempty"`
}

// NewReport assembles a Report from a finished run.
func NewReport(runID, profile string, res runner.Result, warm runner.WarmupResult) Report {
	r := Report{
		RunID:       runID,
		Profile:     profile,
		Passed:      res.Passed,
		Interrupted: res.Interrupted,
		Warmup: WarmupReport{
			Attempts:   warm.Attempts,
			Successes:  warm.Successes,
			DurationMs: float64(warm.Duration) / float64(time.Millisecond),
		},
		Stats: res.Stats,
	}
	for _, t := range res.Thresholds {
		r.Thresholds = append(r.Thresholds, thresholdEntry(t))
	}
	return r
}

func thresholdEntry(t threshold.Result) ThresholdEntry {
	return ThresholdEntry{
		Threshold: t.Threshold.Raw,
		Actual:    t.Actual,
		Pass:      t.Pass,
		Message:   t.Message,
	}
}

// Print renders r in the requested format. Unknown formats fall back to text.
func Print(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatJSON:
		return PrintJSONReport(w, r)
	case FormatYAML:
		return PrintYAMLReport(w, r)
	default:
		PrintReport(w, r)
		return nil
	}
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	}
	if r.Profile != "" {
		fmt.Fprintf(w, "Profile:           %s\n", r.Profile)
	}
	if r.Interrupted {
		fmt.Fprintln(w, "Status:            interrupted")
	}
	if r.Warmup.Attempts > 0 {
		fmt.Fprintf(w, "Warmup:            %d/%d succeeded\n", r.Warmup.Successes, r.Warmup.Attempts)
	}
	fmt.Fprintf(w, "Iterations:        %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Checks passed:     %.2f%%\n", stats.CheckPassRate*100)
	fmt.Fprintf(w, "Retries:           %d\n", stats.Retries)
	fmt.Fprintf(w, "Retries exhausted: %d\n", stats.Exhausted)
	fmt.Fprintf(w, "Timeouts:          %d\n", stats.Timeouts)
	fmt.Fprintf(w, "Delayed starts:    %d\n", stats.DelayedIterations)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Iterations/sec:    %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Scenarios) > 0 {
		fmt.Fprintln(w, "\nScenarios:")
		for _, sc := range stats.Scenarios {
			share := 0.0
			if stats.Total > 0 {
				share = (float64(sc.Total) / float64(stats.Total)) * 100
			}
			fmt.Fprintf(
				w,
				"  - %s [endpoint=%s phase=%s]: total=%d (%.1f%%), successes=%d, failures=%d, retries=%d, delayed=%d, p99=%.1fms\n",
				sc.Name,
				sc.Endpoint,
				sc.Phase,
				sc.Total,
				share,
				sc.Successes,
				sc.Failures,
				sc.Retries,
				sc.DelayedIterations,
				sc.P99LatencyMs,
			)
		}
	}

	if len(stats.Statuses) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, stats.Statuses, "  ")
	}

	if len(r.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, t := range r.Thresholds {
			mark := "PASS"
			if !t.Pass {
				mark = "FAIL"
			}
			fmt.Fprintf(w, "  [%s] %s (actual %.4g)\n", mark, t.Threshold, t.Actual)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, buckets map[string]map[string]int, indent string) {
	rows := metrics.FlattenStatusBuckets(buckets)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(
			w,
			"%s%s %s: %d\n",
			indent,
			row.Scenario,
			strings.ToUpper(row.Code),
			row.Count,
		)
	}
}
