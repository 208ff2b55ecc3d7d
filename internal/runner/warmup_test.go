package runner_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/attestify/evload/internal/runner"
)

func TestWarmupSendsAttemptsWithDelay(t *testing.T) {
	clock := runner.NewFakeClock()
	req := &stubRequester{clock: clock, status: 500}

	res := runner.Warmup(context.Background(), req, runner.WarmupConfig{Attempts: 5, Delay: 500 * time.Millisecond}, clock)

	if res.Attempts != 5 || res.Successes != 0 {
		t.Fatalf("attempts=%d successes=%d, want 5/0", res.Attempts, res.Successes)
	}
	want := []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond}
	if got := clock.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	if res.Duration != 2500*time.Millisecond {
		t.Fatalf("duration = %s, want 2.5s", res.Duration)
	}
	req.mu.Lock()
	defer req.mu.Unlock()
	for _, tags := range req.tags {
		if tags["phase"] != runner.WarmupPhase {
			t.Fatalf("warmup request tagged %v", tags)
		}
	}
}

func TestWarmupMaxDurationCapsBurst(t *testing.T) {
	clock := runner.NewFakeClock()
	req := &stubRequester{clock: clock, latency: 300 * time.Millisecond, status: 200}

	res := runner.Warmup(context.Background(), req, runner.WarmupConfig{Attempts: 10, Delay: 200 * time.Millisecond, MaxDuration: time.Second}, clock)

	if res.Attempts != 2 || res.Successes != 2 {
		t.Fatalf("attempts=%d successes=%d, want 2/2", res.Attempts, res.Successes)
	}
	if res.Duration != time.Second {
		t.Fatalf("duration = %s, want 1s", res.Duration)
	}
}

func TestWarmupZeroAttempts(t *testing.T) {
	req := &stubRequester{status: 200}
	res := runner.Warmup(context.Background(), req, runner.WarmupConfig{}, nil)
	if res.Attempts != 0 || len(req.Starts()) != 0 {
		t.Fatalf("expected no requests, got %d", res.Attempts)
	}
}

func TestWarmupStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := &stubRequester{status: 200}
	res := runner.Warmup(ctx, req, runner.WarmupConfig{Attempts: 3, Delay: time.Hour}, nil)
	if res.Attempts != 0 {
		t.Fatalf("attempts = %d, want 0", res.Attempts)
	}
}

func TestWarmupMaxDurationBoundsSlowRequest(t *testing.T) {
	req := &stubRequester{latency: 1500 * time.Millisecond, status: 200}

	begin := time.Now()
	res := runner.Warmup(context.Background(), req, runner.WarmupConfig{Attempts: 2, Delay: 100 * time.Millisecond, MaxDuration: 300 * time.Millisecond}, nil)
	blocked := time.Since(begin)

	if blocked >= time.Second {
		t.Fatalf("warmup blocked %s, want about 300ms", blocked)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
	if len(req.Starts()) != 1 {
		t.Fatalf("requests = %d, want 1", len(req.Starts()))
	}
}
