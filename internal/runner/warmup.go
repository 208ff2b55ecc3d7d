package runner

import (
	"context"
	"time"

	"github.com/attestify/evload/internal/httpclient"
)

// WarmupPhase tags warmup requests.
const WarmupPhase = "warmup"

// WarmupConfig describes the warmup burst run before any scenario.
type WarmupConfig struct {
	Attempts    int
	Delay       time.Duration // sleep after each request
	MaxDuration time.Duration // optional cap on the whole warmup
}

// WarmupResult summarizes a warmup run. Outcomes never fail the run.
type WarmupResult struct {
	Attempts  int
	Successes int
	Duration  time.Duration
}

// Warmup sends cfg.Attempts sequential requests tagged phase=warmup,
// sleeping cfg.Delay after each. Outcomes are ignored apart from counting.
// A nil clock means the wall clock.
func Warmup(ctx context.Context, req Requester, cfg WarmupConfig, clock Clock) WarmupResult {
	if clock == nil {
		clock = RealClock()
	}
	start := clock.Now()
	var res WarmupResult
	if req == nil {
		return res
	}
	tags := httpclient.Tags{"phase": WarmupPhase}
	for i := 0; i < cfg.Attempts; i++ {
		if ctx.Err() != nil || warmupExpired(clock, start, cfg.MaxDuration) {
			break
		}
		out := warmupRequest(ctx, req, tags, clock, start, cfg.MaxDuration)
		res.Attempts++
		if out.OK() {
			res.Successes++
		}

		delay := cfg.Delay
		if cfg.MaxDuration > 0 {
			delay = minDuration(delay, cfg.MaxDuration-clock.Now().Sub(start))
		}
		if err := clock.Sleep(ctx, delay); err != nil {
			break
		}
	}
	res.Duration = clock.Now().Sub(start)
	return res
}

// warmupRequest bounds the request by the warmup budget when one is set.
func warmupRequest(ctx context.Context, req Requester, tags httpclient.Tags, clock Clock, start time.Time, limit time.Duration) httpclient.Outcome {
	if limit <= 0 {
		return req.Do(ctx, tags)
	}
	reqCtx, cancel := deadlineContext(ctx, clock, start.Add(limit))
	defer cancel()
	return req.Do(reqCtx, tags)
}

func warmupExpired(clock Clock, start time.Time, limit time.Duration) bool {
	return limit > 0 && clock.Now().Sub(start) >= limit
}
