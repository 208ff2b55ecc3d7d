package runner

import (
	"context"
	"sync"
	"time"
)

// runRateBased starts iterations at the scenario's rate until end. Each start
// is handed to an idle worker; when none is idle the pool grows up to
// MaxWorkers, and beyond that the dispatcher waits for a worker to free up.
// Waiting pushes later starts back rather than dropping them, and the limiter
// never bursts to catch up. A start still waiting at end is abandoned.
func (r *Runner) runRateBased(ctx context.Context, s Scenario, end time.Time) {
	clock := r.opt.Clock
	arrival := r.newArrivalController(s)
	jobs := make(chan struct{})

	var wg sync.WaitGroup
	workers := 0
	spawn := func() {
		workers++
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				r.iterate(ctx, s)
			}
		}()
		r.setWorkers(s, workers)
	}
	for i := 0; i < s.PreAllocated; i++ {
		spawn()
	}

	// stop bounds dispatching only; iterations run on ctx so in-flight work
	// finishes after the deadline.
	stop, cancel := deadlineContext(ctx, clock, end)
	defer cancel()

dispatch:
	for {
		if stop.Err() != nil || !clock.Now().Before(end) {
			break
		}
		if err := arrival.Wait(stop); err != nil || !clock.Now().Before(end) {
			break
		}

		select {
		case jobs <- struct{}{}:
			continue
		default:
		}
		if workers < s.MaxWorkers {
			spawn()
			select {
			case jobs <- struct{}{}:
			case <-stop.Done():
				break dispatch
			}
			continue
		}

		r.opt.Collector.RecordDelayed(s.Name)
		select {
		case jobs <- struct{}{}:
		case <-stop.Done():
			break dispatch
		}
	}

	close(jobs)
	wg.Wait()
	r.setWorkers(s, 0)
}

// deadlineContext returns ctx bounded by end on clock. Only the real clock
// gets a timer; virtual clocks rely on callers checking Now.
func deadlineContext(ctx context.Context, clock Clock, end time.Time) (context.Context, context.CancelFunc) {
	if _, ok := clock.(realClock); ok {
		return context.WithDeadline(ctx, end)
	}
	return context.WithCancel(ctx)
}
