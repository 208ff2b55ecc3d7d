package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/attestify/evload/internal/httpclient"
	"github.com/attestify/evload/internal/metrics"
	"github.com/attestify/evload/internal/threshold"
)

// Requester performs one request attempt. *httpclient.Target implements it.
type Requester interface {
	Do(ctx context.Context, tags httpclient.Tags) httpclient.Outcome
}

// ExecutorKind names a traffic shape.
type ExecutorKind string

const (
	// ExecutorRateBased starts iterations at a fixed rate regardless of
	// response times, growing a worker pool up to MaxWorkers.
	ExecutorRateBased ExecutorKind = "rate-based"
	// ExecutorFixedConcurrency runs exactly Workers loops of execute then pace.
	ExecutorFixedConcurrency ExecutorKind = "fixed-concurrency"
)

// ArrivalModel selects how rate-based iteration starts are spaced.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Scenario is one named traffic shape.
type Scenario struct {
	Name         string
	Executor     ExecutorKind
	Rate         int           // iterations per TimeUnit (rate-based)
	TimeUnit     time.Duration // defaults to one second
	Workers      int           // fixed-concurrency
	PreAllocated int           // rate-based initial pool
	MaxWorkers   int           // rate-based pool ceiling
	Duration     time.Duration
	StartOffset  time.Duration
	Phase        string // pacing and tag name, defaults to Name
	EndpointTag  string
	Retry        *RetryPolicy // nil means a single attempt
	Requester    Requester    // overrides Options.Requester
}

// Interval is the gap between iteration starts of a rate-based scenario.
func (s Scenario) Interval() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	unit := s.TimeUnit
	if unit <= 0 {
		unit = time.Second
	}
	return unit / time.Duration(s.Rate)
}

// WorkerGauge is notified when a scenario's worker count changes.
type WorkerGauge interface {
	SetWorkers(scenario string, n int)
}

// Options configure the Runner.
type Options struct {
	Scenarios  []Scenario
	RunBudget  time.Duration // caps StartOffset+Duration of every scenario; 0 disables
	Requester  Requester     // default requester for scenarios without one
	Pacing     PaceTable
	Collector  *metrics.Collector
	Thresholds []threshold.Threshold
	Logger     *slog.Logger
	LogErrors  bool // log one line per failed check
	Clock      Clock
	Workers    WorkerGauge

	ArrivalModel   ArrivalModel
	PoissonSampler func() float64 // optional, returns Exp(1) samples
	RandomSeed     int64

	// LimiterFactory builds the limiter spacing rate-based iteration starts.
	// Optional injection for tests.
	LimiterFactory func(interval time.Duration) *rate.Limiter
}

func (o *Options) normalize() {
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = rand.Int63()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(interval time.Duration) *rate.Limiter {
			if interval <= 0 {
				return rate.NewLimiter(rate.Inf, 1)
			}
			// Burst 1 keeps starts evenly spaced with no catch-up bursts.
			return rate.NewLimiter(rate.Every(interval), 1)
		}
	}
	for i := range o.Scenarios {
		s := &o.Scenarios[i]
		if s.Phase == "" {
			s.Phase = s.Name
		}
		if s.TimeUnit <= 0 {
			s.TimeUnit = time.Second
		}
		if s.Requester == nil {
			s.Requester = o.Requester
		}
		if s.Executor == ExecutorRateBased {
			if s.PreAllocated < 1 {
				s.PreAllocated = 1
			}
			if s.MaxWorkers == 0 {
				s.MaxWorkers = s.PreAllocated
			}
		}
	}
}

// validate checks scenario invariants after normalize.
func (o *Options) validate() error {
	var errs []error
	seen := make(map[string]bool, len(o.Scenarios))
	if len(o.Scenarios) == 0 {
		errs = append(errs, errors.New("at least one scenario is required"))
	}
	for i, s := range o.Scenarios {
		label := fmt.Sprintf("scenario[%d] %q", i, s.Name)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("scenario[%d]: name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name", label))
		}
		seen[s.Name] = true
		if s.Requester == nil {
			errs = append(errs, fmt.Errorf("%s: no requester", label))
		}
		if s.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s: duration must be positive", label))
		}
		if s.StartOffset < 0 {
			errs = append(errs, fmt.Errorf("%s: start offset must not be negative", label))
		}
		if o.RunBudget > 0 && s.StartOffset+s.Duration > o.RunBudget {
			errs = append(errs, fmt.Errorf("%s: start offset plus duration exceeds run budget %s", label, o.RunBudget))
		}
		switch s.Executor {
		case ExecutorRateBased:
			if s.Rate <= 0 {
				errs = append(errs, fmt.Errorf("%s: rate must be positive", label))
			}
			if s.PreAllocated > s.MaxWorkers {
				errs = append(errs, fmt.Errorf("%s: pre-allocated workers exceed max workers", label))
			}
		case ExecutorFixedConcurrency:
			if s.Workers <= 0 {
				errs = append(errs, fmt.Errorf("%s: workers must be positive", label))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown executor %q", label, s.Executor))
		}
	}
	return errors.Join(errs...)
}
