package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/attestify/evload/internal/config"
	"github.com/attestify/evload/internal/httpclient"
	"github.com/attestify/evload/internal/runner"
)

// targetSet holds the default target plus one per scenario that overrides
// the endpoint.
type targetSet struct {
	fallback   *httpclient.Target
	byScenario map[string]*httpclient.Target
}

func (t targetSet) forScenario(name string) *httpclient.Target {
	if target, ok := t.byScenario[name]; ok {
		return target
	}
	return t.fallback
}

func buildTargets(cfg *config.Config, exec *httpclient.Executor) (targetSet, error) {
	body, err := httpclient.NewBodySource(cfg.Payload, cfg.PayloadFile)
	if err != nil {
		return targetSet{}, err
	}
	newTarget := func(endpoint, tag string) (*httpclient.Target, error) {
		builder, err := httpclient.NewRequestBuilder(cfg.Method, cfg.TargetURL(endpoint), cfg.Headers, body)
		if err != nil {
			return nil, err
		}
		if tag == "" {
			tag = endpointTag(cfg.TargetURL(endpoint))
		}
		return &httpclient.Target{
			Executor: exec,
			Builder:  builder,
			Timeout:  cfg.Timeout,
			Tags:     httpclient.Tags{"endpoint": tag},
		}, nil
	}

	fallback, err := newTarget("", cfg.EndpointTag)
	if err != nil {
		return targetSet{}, err
	}
	set := targetSet{fallback: fallback, byScenario: map[string]*httpclient.Target{}}
	for _, s := range cfg.Scenarios {
		if s.Endpoint == "" && s.EndpointTag == "" {
			continue
		}
		target, err := newTarget(s.Endpoint, s.EndpointTag)
		if err != nil {
			return targetSet{}, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		set.byScenario[s.Name] = target
	}
	return set, nil
}

// endpointTag derives a tag from the last path segment of url.
func endpointTag(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 && idx < len(trimmed)-1 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func toRunnerScenarios(cfg *config.Config, targets targetSet) []runner.Scenario {
	out := make([]runner.Scenario, 0, len(cfg.Scenarios))
	for _, s := range cfg.Scenarios {
		target := targets.forScenario(s.Name)
		out = append(out, runner.Scenario{
			Name:         s.Name,
			Executor:     runner.ExecutorKind(s.Executor),
			Rate:         s.Rate,
			TimeUnit:     s.TimeUnit,
			Workers:      s.Workers,
			PreAllocated: s.PreAllocated,
			MaxWorkers:   s.MaxWorkers,
			Duration:     s.Duration,
			StartOffset:  s.StartOffset,
			Phase:        s.Phase,
			EndpointTag:  target.Tags["endpoint"],
			Retry:        toRetryPolicy(cfg.RetryFor(s)),
			Requester:    target,
		})
	}
	return out
}

// toRetryPolicy returns nil for single-attempt settings.
func toRetryPolicy(rc config.RetryConfig) *runner.RetryPolicy {
	if !rc.Enabled() {
		return nil
	}
	return &runner.RetryPolicy{
		MaxAttempts: rc.MaxAttempts,
		Backoff:     append([]time.Duration(nil), rc.Backoff...),
		Classifier: runner.Classifier{
			RateLimitedStatus:   rc.RateLimitedStatus,
			UnprocessableStatus: rc.UnprocessableStatus,
			RateLimitMarker:     rc.RateLimitMarker,
			ContentionMarker:    rc.ContentionMarker,
		},
	}
}

func toPaceTable(p config.PacingConfig) runner.PaceTable {
	table := runner.PaceTable{Default: p.Default}
	if len(p.Phases) > 0 {
		table.Phases = make(map[string]time.Duration, len(p.Phases))
		for phase, d := range p.Phases {
			table.Phases[phase] = d
		}
	}
	return table
}

func toWarmupConfig(w config.WarmupConfig) runner.WarmupConfig {
	return runner.WarmupConfig{Attempts: w.Attempts, Delay: w.Delay, MaxDuration: w.MaxDuration}
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}
