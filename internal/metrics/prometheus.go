package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromObserver mirrors collected iterations into Prometheus metrics on a
// private registry, so several runs in one process never collide.
type PromObserver struct {
	registry   *prometheus.Registry
	iterations *prometheus.CounterVec
	attempts   *prometheus.CounterVec
	exhausted  *prometheus.CounterVec
	delayed    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	workers    *prometheus.GaugeVec
}

func NewPromObserver(runID string) *PromObserver {
	constLabels := prometheus.Labels{}
	if runID != "" {
		constLabels["run_id"] = runID
	}
	p := &PromObserver{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "evload_iterations_total",
			Help:        "Completed iterations by scenario, endpoint, phase, final status and check result",
			ConstLabels: constLabels,
		}, []string{"scenario", "endpoint", "phase", "status", "passed"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "evload_request_attempts_total",
			Help:        "HTTP attempts issued, including retries",
			ConstLabels: constLabels,
		}, []string{"scenario"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "evload_retries_exhausted_total",
			Help:        "Iterations that used up their retry budget",
			ConstLabels: constLabels,
		}, []string{"scenario"}),
		delayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "evload_iterations_delayed_total",
			Help:        "Iterations that waited for a free worker",
			ConstLabels: constLabels,
		}, []string{"scenario"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "evload_iteration_duration_seconds",
			Help:        "Duration of the final attempt of each iteration",
			ConstLabels: constLabels,
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		}, []string{"scenario"}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "evload_workers",
			Help:        "Workers currently allocated per scenario",
			ConstLabels: constLabels,
		}, []string{"scenario"}),
	}
	p.registry.MustRegister(p.iterations, p.attempts, p.exhausted, p.delayed, p.duration, p.workers)
	return p
}

func (p *PromObserver) ObserveIteration(rec Record) {
	status := rec.Status
	if status == "" {
		status = "unknown"
	}
	p.iterations.WithLabelValues(rec.Scenario, rec.Endpoint, rec.Phase, status, strconv.FormatBool(rec.Passed)).Inc()
	attempts := rec.Attempts
	if attempts < 1 {
		attempts = 1
	}
	p.attempts.WithLabelValues(rec.Scenario).Add(float64(attempts))
	if rec.Exhausted {
		p.exhausted.WithLabelValues(rec.Scenario).Inc()
	}
	p.duration.WithLabelValues(rec.Scenario).Observe(rec.Latency.Seconds())
}

func (p *PromObserver) ObserveDelayed(scenario string) {
	p.delayed.WithLabelValues(scenario).Inc()
}

// SetWorkers publishes the current pool size of a scenario.
func (p *PromObserver) SetWorkers(scenario string, n int) {
	p.workers.WithLabelValues(scenario).Set(float64(n))
}

// Registry exposes the underlying registry for tests and custom exposition.
func (p *PromObserver) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *PromObserver) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
