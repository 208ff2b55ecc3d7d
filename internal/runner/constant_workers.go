package runner

import (
	"context"
	"sync"
	"time"
)

// runFixedConcurrency runs s.Workers loops until end. Each loop executes one
// iteration, then idles for the rest of the phase cadence measured from the
// iteration's start. The idle sleep is cut short at end.
func (r *Runner) runFixedConcurrency(ctx context.Context, s Scenario, end time.Time) {
	r.setWorkers(s, s.Workers)
	defer r.setWorkers(s, 0)

	var wg sync.WaitGroup
	wg.Add(s.Workers)
	for i := 0; i < s.Workers; i++ {
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, s, end)
		}()
	}
	wg.Wait()
}

func (r *Runner) workerLoop(ctx context.Context, s Scenario, end time.Time) {
	clock := r.opt.Clock
	state := pacingState{table: r.opt.Pacing, phase: s.Phase}
	for {
		now := clock.Now()
		if ctx.Err() != nil || !now.Before(end) {
			return
		}
		state.begin(now)
		r.iterate(ctx, s)

		now = clock.Now()
		remaining := end.Sub(now)
		if remaining <= 0 {
			return
		}
		if err := clock.Sleep(ctx, minDuration(state.idle(now), remaining)); err != nil {
			return
		}
	}
}
