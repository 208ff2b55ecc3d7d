package runner

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPoissonArrivalNextDelayUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{clock: NewFakeClock(), mean: 5 * time.Millisecond, sample: func() float64 { return 2 }}
	if delay := ctrl.nextDelay(); delay != 10*time.Millisecond {
		t.Fatalf("expected delay 10ms, got %s", delay)
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{clock: RealClock(), mean: time.Hour, sample: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestUniformArrivalSpacesStartsWithoutBurst(t *testing.T) {
	clock := NewFakeClock()
	ctrl := &uniformArrival{clock: clock, limiter: rate.NewLimiter(rate.Every(5*time.Second), 1)}
	start := clock.Now()
	for i := 0; i < 4; i++ {
		if err := ctrl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if got, want := clock.Now().Sub(start), time.Duration(i)*5*time.Second; got != want {
			t.Fatalf("start %d at +%s, want +%s", i, got, want)
		}
	}
}

func TestOptionsNormalizeDefaults(t *testing.T) {
	o := Options{Scenarios: []Scenario{
		{Name: "steady", Executor: ExecutorRateBased, Rate: 1},
		{Name: "every_60s", Executor: ExecutorFixedConcurrency, Workers: 1, Phase: "custom"},
	}}
	o.normalize()
	if o.Clock == nil || o.Logger == nil || o.Collector == nil || o.LimiterFactory == nil {
		t.Fatal("normalize left a nil default")
	}
	if o.ArrivalModel != ArrivalModelUniform || o.RandomSeed == 0 {
		t.Fatalf("arrival defaults = %q seed %d", o.ArrivalModel, o.RandomSeed)
	}
	rb := o.Scenarios[0]
	if rb.Phase != "steady" || rb.TimeUnit != time.Second || rb.PreAllocated != 1 || rb.MaxWorkers != 1 {
		t.Fatalf("rate-based defaults = %+v", rb)
	}
	if o.Scenarios[1].Phase != "custom" {
		t.Fatalf("explicit phase overwritten: %q", o.Scenarios[1].Phase)
	}
	if lim := o.LimiterFactory(time.Second); lim.Burst() != 1 {
		t.Fatalf("limiter burst = %d, want 1", lim.Burst())
	}
}
