package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// failureRateThreshold is the error budget of the rate-based profiles.
const failureRateThreshold = "http_req_failed:rate < 0.001"

// Profile is a named preset reproducing one of the service's load scripts.
type Profile struct {
	Name        string
	Description string
	apply       func(cfg *Config)
}

var profiles = map[string]Profile{
	"evidence-infra": {
		Name:        "evidence-infra",
		Description: "POST /evidence/infrastructure at 12 per minute for 10m",
		apply: func(cfg *Config) {
			cfg.Endpoint = "/evidence/infrastructure"
			cfg.EndpointTag = "infrastructure"
			cfg.PayloadFile = "test-payloads/challenge.json"
			cfg.Scenarios = []ScenarioConfig{steadyRate(12, time.Minute, 5)}
			cfg.Warmup = WarmupConfig{Attempts: 3, Delay: 500 * time.Millisecond}
			cfg.Thresholds = []string{failureRateThreshold}
		},
	},
	"evidence-quote": {
		Name:        "evidence-quote",
		Description: "POST /evidence/tdx-quote at 1/s for 10m",
		apply:       applyEvidenceQuote,
	},
	"evidence-quote-retry": {
		Name:        "evidence-quote-retry",
		Description: "evidence-quote with bounded retries on manifest contention",
		apply: func(cfg *Config) {
			applyEvidenceQuote(cfg)
			cfg.Retry = RetryConfig{
				MaxAttempts: 4,
				Backoff:     []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second},
			}
		},
	},
	"verify-tdx": {
		Name:        "verify-tdx",
		Description: "POST /verify/tdx-quote in three sequential fixed-pace phases (60s, 30s, 10s)",
		apply: func(cfg *Config) {
			cfg.Endpoint = "/verify/tdx-quote"
			cfg.EndpointTag = "verify-tdx-quote"
			cfg.PayloadFile = "test-payloads/quote.json"
			cfg.Scenarios = []ScenarioConfig{
				pacedPhase("every_60s", 0),
				pacedPhase("every_30s", 3*time.Minute+10*time.Second),
				pacedPhase("every_10s", 6*time.Minute+20*time.Second),
			}
			cfg.Pacing = PacingConfig{
				Default: 60 * time.Second,
				Phases: map[string]time.Duration{
					"every_60s": 60 * time.Second,
					"every_30s": 30 * time.Second,
					"every_10s": 10 * time.Second,
				},
			}
			cfg.Warmup = WarmupConfig{Attempts: 1, Delay: 2 * time.Second}
		},
	},
	"verify-workloads": {
		Name:        "verify-workloads",
		Description: "POST /verify/workloads at 1/s for 10m",
		apply: func(cfg *Config) {
			cfg.Endpoint = "/verify/workloads"
			cfg.EndpointTag = "verify-workloads"
			cfg.PayloadFile = "test-payloads/workloads.json"
			cfg.Scenarios = []ScenarioConfig{steadyRate(1, time.Second, 10)}
			cfg.Warmup = WarmupConfig{Attempts: 5, Delay: 200 * time.Millisecond}
			cfg.Thresholds = []string{failureRateThreshold}
		},
	},
}

func applyEvidenceQuote(cfg *Config) {
	cfg.Endpoint = "/evidence/tdx-quote"
	cfg.EndpointTag = "tdx-quote"
	cfg.PayloadFile = "test-payloads/challenge.json"
	cfg.Scenarios = []ScenarioConfig{steadyRate(1, time.Second, 10)}
	cfg.Warmup = WarmupConfig{Attempts: 5, Delay: 500 * time.Millisecond}
	cfg.Thresholds = []string{failureRateThreshold}
}

func steadyRate(rate int, unit time.Duration, maxWorkers int) ScenarioConfig {
	return ScenarioConfig{
		Name:         "steady",
		Executor:     ExecutorRateBased,
		Rate:         rate,
		TimeUnit:     unit,
		Duration:     10 * time.Minute,
		PreAllocated: 1,
		MaxWorkers:   maxWorkers,
	}
}

func pacedPhase(name string, offset time.Duration) ScenarioConfig {
	return ScenarioConfig{
		Name:        name,
		Executor:    ExecutorFixedConcurrency,
		Workers:     1,
		Duration:    3 * time.Minute,
		StartOffset: offset,
	}
}

// LookupProfile returns the named profile.
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// ProfileNames lists the built-in profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// applyProfile overlays the named profile onto cfg.
func applyProfile(cfg *Config, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	p, ok := LookupProfile(name)
	if !ok {
		return fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	cfg.Profile = p.Name
	p.apply(cfg)
	return nil
}
