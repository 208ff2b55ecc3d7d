package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Record describes one completed iteration: the final outcome after any
// retries, folded into a pass/fail check.
type Record struct {
	Scenario  string
	Endpoint  string
	Phase     string
	Status    string
	Latency   time.Duration
	Attempts  int
	Passed    bool
	Exhausted bool
	TimedOut  bool
}

// Observer receives every record as it is collected. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveIteration(rec Record)
	ObserveDelayed(scenario string)
}

// Collector records per-iteration metrics in a thread-safe manner.
type Collector struct {
	mu        sync.Mutex
	overall   *tracker
	scenarios map[string]*tracker
	order     []string
	statuses  map[string]map[string]int64
	observers []Observer
	start     time.Time
}

type tracker struct {
	hist       *hdrhistogram.Histogram
	endpoint   string
	phase      string
	successes  int64
	failures   int64
	attempts   int64
	exhausted  int64
	timeouts   int64
	delayed    int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
}

// Stats represents aggregated metrics.
type Stats struct {
	Total             int64         `json:"total" yaml:"total"`
	Successes         int64         `json:"successes" yaml:"successes"`
	Failures          int64         `json:"failures" yaml:"failures"`
	Attempts          int64         `json:"attempts" yaml:"attempts"`
	Retries           int64         `json:"retries" yaml:"retries"`
	Exhausted         int64         `json:"exhausted" yaml:"exhausted"`
	Timeouts          int64         `json:"timeouts" yaml:"timeouts"`
	DelayedIterations int64         `json:"delayed_iterations" yaml:"delayed_iterations"`
	CheckPassRate     float64       `json:"check_pass_rate" yaml:"check_pass_rate"`
	MinLatency        time.Duration `json:"-" yaml:"-"`
	MaxLatency        time.Duration `json:"-" yaml:"-"`
	MeanLatency       time.Duration `json:"-" yaml:"-"`
	P50Latency        time.Duration `json:"-" yaml:"-"`
	P90Latency        time.Duration `json:"-" yaml:"-"`
	P95Latency        time.Duration `json:"-" yaml:"-"`
	P99Latency        time.Duration `json:"-" yaml:"-"`
	Duration          time.Duration `json:"-" yaml:"-"`
	RequestsPerSec    float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms" yaml:"duration_ms"`

	Statuses  map[string]map[string]int `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	Scenarios []ScenarioStats           `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// ScenarioStats is the per-scenario slice of Stats.
type ScenarioStats struct {
	Name              string  `json:"name" yaml:"name"`
	Endpoint          string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Phase             string  `json:"phase,omitempty" yaml:"phase,omitempty"`
	Total             int64   `json:"total" yaml:"total"`
	Successes         int64   `json:"successes" yaml:"successes"`
	Failures          int64   `json:"failures" yaml:"failures"`
	Retries           int64   `json:"retries" yaml:"retries"`
	Exhausted         int64   `json:"exhausted" yaml:"exhausted"`
	Timeouts          int64   `json:"timeouts" yaml:"timeouts"`
	DelayedIterations int64   `json:"delayed_iterations" yaml:"delayed_iterations"`
	MeanLatencyMs     float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs      float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs      float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs      float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	MaxLatencyMs      float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
}

func NewCollector(observers ...Observer) *Collector {
	c := &Collector{
		overall:   newTracker(),
		scenarios: make(map[string]*tracker),
		statuses:  make(map[string]map[string]int64),
		start:     time.Now(),
	}
	for _, o := range observers {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
	return c
}

func newTracker() *tracker {
	// Track latencies from 1µs up to 5m with 3 significant figures; request
	// timeouts in this harness reach 90s.
	return &tracker{hist: hdrhistogram.New(1, 300_000_000, 3)}
}

// Start resets the reference time used for request-rate calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start (or construction).
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordIteration records one iteration's final outcome.
func (c *Collector) RecordIteration(rec Record) {
	c.mu.Lock()
	c.overall.add(rec)
	sc := c.scenarioLocked(rec.Scenario)
	sc.add(rec)
	if rec.Endpoint != "" {
		sc.endpoint = rec.Endpoint
	}
	if rec.Phase != "" {
		sc.phase = rec.Phase
	}

	status := rec.Status
	if status == "" {
		status = "unknown"
	}
	byStatus, ok := c.statuses[rec.Scenario]
	if !ok {
		byStatus = make(map[string]int64)
		c.statuses[rec.Scenario] = byStatus
	}
	byStatus[status]++
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o.ObserveIteration(rec)
	}
}

// RecordDelayed counts an iteration that had to wait for a free worker.
func (c *Collector) RecordDelayed(scenario string) {
	c.mu.Lock()
	c.overall.delayed++
	c.scenarioLocked(scenario).delayed++
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o.ObserveDelayed(scenario)
	}
}

func (c *Collector) scenarioLocked(name string) *tracker {
	sc, ok := c.scenarios[name]
	if !ok {
		sc = newTracker()
		c.scenarios[name] = sc
		c.order = append(c.order, name)
	}
	return sc
}

func (t *tracker) add(rec Record) {
	latency := rec.Latency
	if latency > 0 {
		us := latency.Microseconds()
		if us < t.hist.LowestTrackableValue() {
			us = t.hist.LowestTrackableValue()
		}
		if us > t.hist.HighestTrackableValue() {
			us = t.hist.HighestTrackableValue()
		}
		_ = t.hist.RecordValue(us)
	}
	t.sumLatency += latency
	if t.total() == 0 || latency < t.minLatency {
		t.minLatency = latency
	}
	if latency > t.maxLatency {
		t.maxLatency = latency
	}

	attempts := rec.Attempts
	if attempts < 1 {
		attempts = 1
	}
	t.attempts += int64(attempts)
	if rec.Passed {
		t.successes++
	} else {
		t.failures++
	}
	if rec.Exhausted {
		t.exhausted++
	}
	if rec.TimedOut {
		t.timeouts++
	}
}

func (t *tracker) total() int64 { return t.successes + t.failures }

func (t *tracker) quantile(q float64) time.Duration {
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(t.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (t *tracker) mean() time.Duration {
	total := t.total()
	if total == 0 {
		return 0
	}
	return time.Duration(int64(t.sumLatency) / total)
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	o := c.overall
	total := o.total()
	stats := Stats{
		Total:             total,
		Successes:         o.successes,
		Failures:          o.failures,
		Attempts:          o.attempts,
		Retries:           o.attempts - total,
		Exhausted:         o.exhausted,
		Timeouts:          o.timeouts,
		DelayedIterations: o.delayed,
		MinLatency:        o.minLatency,
		MaxLatency:        o.maxLatency,
		MeanLatency:       o.mean(),
		P50Latency:        o.quantile(50),
		P90Latency:        o.quantile(90),
		P95Latency:        o.quantile(95),
		P99Latency:        o.quantile(99),
	}
	if total > 0 {
		stats.CheckPassRate = float64(o.successes) / float64(total)
	}

	stats.MinLatencyMs = millis(stats.MinLatency)
	stats.MaxLatencyMs = millis(stats.MaxLatency)
	stats.MeanLatencyMs = millis(stats.MeanLatency)
	stats.P50LatencyMs = millis(stats.P50Latency)
	stats.P90LatencyMs = millis(stats.P90Latency)
	stats.P95LatencyMs = millis(stats.P95Latency)
	stats.P99LatencyMs = millis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = millis(elapsed)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.statuses) > 0 {
		stats.Statuses = make(map[string]map[string]int, len(c.statuses))
		for scenario, codes := range c.statuses {
			inner := make(map[string]int, len(codes))
			for code, n := range codes {
				inner[code] = int(n)
			}
			stats.Statuses[scenario] = inner
		}
	}

	for _, name := range c.order {
		sc := c.scenarios[name]
		scTotal := sc.total()
		stats.Scenarios = append(stats.Scenarios, ScenarioStats{
			Name:              name,
			Endpoint:          sc.endpoint,
			Phase:             sc.phase,
			Total:             scTotal,
			Successes:         sc.successes,
			Failures:          sc.failures,
			Retries:           sc.attempts - scTotal,
			Exhausted:         sc.exhausted,
			Timeouts:          sc.timeouts,
			DelayedIterations: sc.delayed,
			MeanLatencyMs:     millis(sc.mean()),
			P50LatencyMs:      millis(sc.quantile(50)),
			P90LatencyMs:      millis(sc.quantile(90)),
			P99LatencyMs:      millis(sc.quantile(99)),
			MaxLatencyMs:      millis(sc.maxLatency),
		})
	}

	return stats
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
