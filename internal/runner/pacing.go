package runner

import "time"

// PaceTable maps phase names to their iteration cadence.
type PaceTable struct {
	Default time.Duration
	Phases  map[string]time.Duration
}

// Cadence returns the cadence for phase, falling back to Default.
func (t PaceTable) Cadence(phase string) time.Duration {
	if c, ok := t.Phases[phase]; ok {
		return c
	}
	return t.Default
}

// IdleTime returns how long to wait after an iteration of phase that took
// observed. It is never negative.
func (t PaceTable) IdleTime(phase string, observed time.Duration) time.Duration {
	idle := t.Cadence(phase) - observed
	if idle < 0 {
		return 0
	}
	return idle
}

// pacingState belongs to a single fixed-concurrency worker.
type pacingState struct {
	table     PaceTable
	phase     string
	lastStart time.Time
}

func (p *pacingState) begin(now time.Time) {
	p.lastStart = now
}

// idle returns the wait needed before the next iteration may start.
func (p *pacingState) idle(now time.Time) time.Duration {
	return p.table.IdleTime(p.phase, now.Sub(p.lastStart))
}
