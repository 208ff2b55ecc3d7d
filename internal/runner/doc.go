// Package runner is the scheduling and execution engine of evload.
//
// A [Runner] runs a set of named [Scenario] values. Each scenario starts at
// its StartOffset, runs for its Duration and uses one of two executors:
//   - [ExecutorRateBased]: iterations start at Rate per TimeUnit whatever the
//     response times. A worker pool starts at PreAllocated and grows to
//     MaxWorkers; when every worker is busy the next start waits for one to
//     free up and is counted as delayed.
//   - [ExecutorFixedConcurrency]: exactly Workers loops of execute then pace,
//     where the pace comes from a [PaceTable] keyed by phase.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Scenarios: []runner.Scenario{{
//			Name:         "steady",
//			Executor:     runner.ExecutorRateBased,
//			Rate:         1,
//			TimeUnit:     time.Second,
//			Duration:     10 * time.Minute,
//			PreAllocated: 1,
//			MaxWorkers:   10,
//			EndpointTag:  "tdx-quote",
//		}},
//		Requester: target,
//	})
//	if err != nil {
//		return err
//	}
//	result := r.Run(ctx)
//
// # Retries
//
// Every iteration goes through the scenario's [RetryPolicy]. A nil policy
// makes a single attempt. The [Classifier] treats 429, and 422 whose message
// mentions both "429" and "manifest", as transient; everything else is
// accepted as the iteration's final outcome.
//
// # Warmup
//
// [Warmup] sends a short sequential burst before the scenarios start and
// ignores its outcomes.
//
// # Time
//
// Pacing, backoff and arrival spacing all sleep through a [Clock]. Tests
// inject a virtual clock to check schedules exactly.
package runner
