package runner

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// arrivalController blocks until the next rate-based iteration is due.
type arrivalController interface {
	Wait(ctx context.Context) error
}

func (r *Runner) newArrivalController(s Scenario) arrivalController {
	interval := s.Interval()
	switch r.opt.ArrivalModel {
	case ArrivalModelPoisson:
		sampler := r.opt.PoissonSampler
		if sampler == nil {
			seeded := rand.New(rand.NewSource(r.opt.RandomSeed))
			sampler = seeded.ExpFloat64
		}
		return &poissonArrival{clock: r.opt.Clock, mean: interval, sample: sampler}
	default:
		return &uniformArrival{clock: r.opt.Clock, limiter: r.opt.LimiterFactory(interval)}
	}
}

// uniformArrival delegates spacing to a rate.Limiter. Reservations are made
// against the injected clock so tests can drive it without real sleeps.
type uniformArrival struct {
	clock   Clock
	limiter *rate.Limiter
}

func (u *uniformArrival) Wait(ctx context.Context) error {
	if u == nil || u.limiter == nil {
		return ctx.Err()
	}
	now := u.clock.Now()
	res := u.limiter.ReserveN(now, 1)
	if !res.OK() {
		return ctx.Err()
	}
	if err := u.clock.Sleep(ctx, res.DelayFrom(now)); err != nil {
		res.CancelAt(u.clock.Now())
		return err
	}
	return nil
}

// poissonArrival samples exponential inter-arrival times around the mean
// interval to approximate a Poisson process.
type poissonArrival struct {
	mu     sync.Mutex
	clock  Clock
	mean   time.Duration
	sample func() float64
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	return p.clock.Sleep(ctx, p.nextDelay())
}

func (p *poissonArrival) nextDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mean <= 0 || p.sample == nil {
		return 0
	}
	delay := float64(p.mean) * p.sample()
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}
