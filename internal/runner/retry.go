package runner

import (
	"context"
	"time"

	"github.com/attestify/evload/internal/httpclient"
)

// Action is what the retry loop does after an attempt.
type Action int

const (
	ActionAccept Action = iota
	ActionRetry
	ActionExhausted
	// ActionInterrupted means the context ended during a backoff sleep
	// before the retry budget was used up.
	ActionInterrupted
)

func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionRetry:
		return "retry"
	case ActionInterrupted:
		return "interrupted"
	default:
		return "exhausted"
	}
}

// Decision is the result of classifying one attempt.
type Decision struct {
	Action Action
	Delay  time.Duration
	Class  Class
}

// RetryPolicy configures bounded retries for transient outcomes.
type RetryPolicy struct {
	MaxAttempts int             // total attempts including the first
	Backoff     []time.Duration // delay before attempt n+1 is Backoff[min(n-1, len-1)]
	Classifier  Classifier
}

// NoRetry is a single-attempt policy.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, Classifier: DefaultClassifier()}
}

// NextAction decides what follows attempt (1-based) that produced out.
func (p RetryPolicy) NextAction(out httpclient.Outcome, attempt int) Decision {
	class := p.Classifier.Classify(out)
	if class != ClassTransient {
		return Decision{Action: ActionAccept, Class: class}
	}
	if attempt >= p.maxAttempts() {
		return Decision{Action: ActionExhausted, Class: class}
	}
	return Decision{Action: ActionRetry, Delay: p.backoff(attempt), Class: class}
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(p.Backoff)-1 {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

// AttemptFunc performs one attempt. attempt is 1-based.
type AttemptFunc func(ctx context.Context, attempt int) httpclient.Outcome

// Do runs fn until the outcome is accepted or attempts run out. It returns
// the last outcome, the number of attempts made and the final decision. If
// ctx is cancelled during a backoff sleep the last outcome is returned as
// interrupted.
func (p RetryPolicy) Do(ctx context.Context, clock Clock, fn AttemptFunc) (httpclient.Outcome, int, Decision) {
	if clock == nil {
		clock = RealClock()
	}
	var (
		out      httpclient.Outcome
		decision Decision
	)
	max := p.maxAttempts()
	for attempt := 1; attempt <= max; attempt++ {
		out = fn(ctx, attempt)
		decision = p.NextAction(out, attempt)
		if decision.Action != ActionRetry {
			return out, attempt, decision
		}
		if err := clock.Sleep(ctx, decision.Delay); err != nil {
			decision.Action = ActionInterrupted
			decision.Delay = 0
			return out, attempt, decision
		}
	}
	// Unreachable: the last attempt always yields accept or exhausted.
	return out, max, decision
}
