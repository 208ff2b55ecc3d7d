package runner

import (
	"context"
	"sync"
	"time"

	"github.com/attestify/evload/internal/httpclient"
	"github.com/attestify/evload/internal/metrics"
	"github.com/attestify/evload/internal/threshold"
)

// CheckStatus2xx is the name of the per-iteration check.
const CheckStatus2xx = "status is 2xx"

// failureBodyLimit caps the response body echoed into failure logs.
const failureBodyLimit = 300

// CheckResult is the pass/fail verdict of one iteration.
type CheckResult struct {
	Name   string
	Passed bool
}

// Result captures the run summary.
type Result struct {
	Stats       metrics.Stats
	Thresholds  []threshold.Result
	Passed      bool // false only when a threshold failed
	Interrupted bool // the run context was cancelled before the schedule ended
	Duration    time.Duration
}

// Runner activates scenarios at their start offsets and drives their
// executors until each one's deadline.
type Runner struct {
	opt Options
}

// New validates opt and returns a Runner. Scenarios are copied and must not
// be changed afterwards.
func New(opt Options) (*Runner, error) {
	opt.Scenarios = append([]Scenario(nil), opt.Scenarios...)
	opt.normalize()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	return &Runner{opt: opt}, nil
}

// Collector returns the collector receiving iteration records.
func (r *Runner) Collector() *metrics.Collector { return r.opt.Collector }

// Run executes every scenario and evaluates thresholds once all of them have
// finished. Cancelling ctx stops new iterations and interrupts backoff and
// pacing sleeps.
func (r *Runner) Run(ctx context.Context) Result {
	clock := r.opt.Clock
	start := clock.Now()
	r.opt.Collector.Start()

	var wg sync.WaitGroup
	wg.Add(len(r.opt.Scenarios))
	for i := range r.opt.Scenarios {
		s := r.opt.Scenarios[i]
		go func() {
			defer wg.Done()
			r.runScenario(ctx, start, s)
		}()
	}
	wg.Wait()

	elapsed := clock.Now().Sub(start)
	stats := r.opt.Collector.Stats(elapsed)
	results := threshold.NewEvaluator(r.opt.Thresholds).Evaluate(stats)
	return Result{
		Stats:       stats,
		Thresholds:  results,
		Passed:      threshold.AllPassed(results),
		Interrupted: ctx.Err() != nil,
		Duration:    elapsed,
	}
}

func (r *Runner) runScenario(ctx context.Context, runStart time.Time, s Scenario) {
	clock := r.opt.Clock
	if err := clock.Sleep(ctx, s.StartOffset-clock.Now().Sub(runStart)); err != nil {
		return
	}
	end := clock.Now().Add(s.Duration)
	if r.opt.RunBudget > 0 {
		if budgetEnd := runStart.Add(r.opt.RunBudget); budgetEnd.Before(end) {
			end = budgetEnd
		}
	}

	log := r.opt.Logger.With("scenario", s.Name)
	log.Debug("scenario started", "executor", string(s.Executor), "phase", s.Phase, "until", end)
	switch s.Executor {
	case ExecutorRateBased:
		r.runRateBased(ctx, s, end)
	case ExecutorFixedConcurrency:
		r.runFixedConcurrency(ctx, s, end)
	}
	log.Debug("scenario finished")
}

func (r *Runner) setWorkers(s Scenario, n int) {
	if r.opt.Workers != nil {
		r.opt.Workers.SetWorkers(s.Name, n)
	}
}

// iterate runs one iteration: the request through the scenario's retry
// policy, then the status check.
func (r *Runner) iterate(ctx context.Context, s Scenario) CheckResult {
	policy := NoRetry()
	if s.Retry != nil {
		policy = *s.Retry
	}
	tags := httpclient.Tags{"phase": s.Phase, "scenario": s.Name}
	if s.EndpointTag != "" {
		tags["endpoint"] = s.EndpointTag
	}

	out, attempts, decision := policy.Do(ctx, r.opt.Clock, func(ctx context.Context, attempt int) httpclient.Outcome {
		return s.Requester.Do(ctx, tags)
	})
	check := CheckResult{Name: CheckStatus2xx, Passed: out.OK()}

	endpoint := out.Tags["endpoint"]
	if endpoint == "" {
		endpoint = s.EndpointTag
	}
	r.opt.Collector.RecordIteration(metrics.Record{
		Scenario:  s.Name,
		Endpoint:  endpoint,
		Phase:     s.Phase,
		Status:    out.StatusLabel(),
		Latency:   out.Duration,
		Attempts:  attempts,
		Passed:    check.Passed,
		Exhausted: decision.Action == ActionExhausted,
		TimedOut:  out.TimedOut,
	})

	if !check.Passed && r.opt.LogErrors {
		attrs := []any{
			"endpoint", endpoint,
			"phase", s.Phase,
			"status", out.StatusLabel(),
			"body", truncateBody(out.Body),
			"scenario", s.Name,
			"attempts", attempts,
			"class", decision.Class.String(),
		}
		if out.Err != nil {
			attrs = append(attrs, "error", out.Err.Error())
		}
		r.opt.Logger.Warn("check failed", attrs...)
	}
	return check
}

func truncateBody(body []byte) string {
	if len(body) > failureBodyLimit {
		body = body[:failureBodyLimit]
	}
	return string(body)
}

// minDuration returns the smaller of a and b.
func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
