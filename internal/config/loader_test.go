package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDurationSlice(t *testing.T) {
	got, err := asDurationSlice("5s, 10s,20s")
	if err != nil {
		t.Fatalf("asDurationSlice() error = %v", err)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	got, err = asDurationSlice([]interface{}{"30s", 60})
	if err != nil {
		t.Fatalf("asDurationSlice(list) error = %v", err)
	}
	if got[0] != 30*time.Second || got[1] != time.Minute {
		t.Errorf("asDurationSlice(list) = %v", got)
	}

	if _, err := asDurationSlice("5s,soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"base_url":     "https://svc.example.com",
		"endpoint":     "/verify/workloads",
		"endpoint_tag": "verify-workloads",
		"timeout":      "90s",
		"headers":      map[string]interface{}{"x-trace": "on"},
		"warmup":       map[string]interface{}{"attempts": 5, "delay": "200ms"},
		"retry": map[string]interface{}{
			"max_attempts": 4,
			"backoff":      []interface{}{"5s", "10s"},
		},
		"pacing": map[string]interface{}{
			"default": "60s",
			"phases":  map[string]interface{}{"every_10s": "10s"},
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.TargetURL("") != "https://svc.example.com/verify/workloads" {
		t.Errorf("TargetURL = %q", cfg.TargetURL(""))
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %s, want 90s", cfg.Timeout)
	}
	if cfg.Headers["X-Trace"] != "on" || cfg.Headers["Content-Type"] != "application/json" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.Warmup.Attempts != 5 || cfg.Warmup.Delay != 200*time.Millisecond {
		t.Errorf("Warmup = %+v", cfg.Warmup)
	}
	if cfg.Retry.MaxAttempts != 4 || len(cfg.Retry.Backoff) != 2 {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Pacing.Default != time.Minute || cfg.Pacing.Phases["every_10s"] != 10*time.Second {
		t.Errorf("Pacing = %+v", cfg.Pacing)
	}
}

func TestParseScenariosList(t *testing.T) {
	input := []interface{}{
		map[string]interface{}{
			"name":          "steady",
			"executor":      "constant-arrival-rate",
			"rate":          12,
			"time_unit":     "1m",
			"duration":      "10m",
			"pre_allocated": 1,
			"max_workers":   5,
			"retry":         false,
		},
		map[string]interface{}{
			"name":         "every_10s",
			"executor":     "constant-vus",
			"vus":          1,
			"duration":     "3m",
			"start_offset": "6m20s",
			"retry":        map[string]interface{}{"max_attempts": 2},
		},
	}

	scenarios, err := parseScenarios(input)
	if err != nil {
		t.Fatalf("parseScenarios() error = %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("len(scenarios) = %d, want 2", len(scenarios))
	}

	s := scenarios[0]
	if s.Executor != ExecutorRateBased || s.Rate != 12 || s.TimeUnit != time.Minute || s.MaxWorkers != 5 {
		t.Errorf("scenario[0] = %+v", s)
	}
	if s.Retry == nil || s.Retry.MaxAttempts != 1 {
		t.Errorf("retry: false should disable retries, got %+v", s.Retry)
	}

	f := scenarios[1]
	if f.Executor != ExecutorFixedConcurrency || f.Workers != 1 || f.StartOffset != 6*time.Minute+20*time.Second {
		t.Errorf("scenario[1] = %+v", f)
	}
	if f.Retry == nil || f.Retry.MaxAttempts != 2 {
		t.Errorf("scenario[1] retry = %+v", f.Retry)
	}
}

func TestParseScenariosNamedMap(t *testing.T) {
	input := map[string]interface{}{
		"every_30s": map[string]interface{}{"executor": "fixed-concurrency", "workers": 1, "duration": "3m", "start_offset": "3m10s"},
		"every_60s": map[string]interface{}{"executor": "fixed-concurrency", "workers": 1, "duration": "3m"},
	}
	scenarios, err := parseScenarios(input)
	if err != nil {
		t.Fatalf("parseScenarios() error = %v", err)
	}
	if len(scenarios) != 2 || scenarios[0].Name != "every_60s" || scenarios[1].Name != "every_30s" {
		t.Fatalf("scenarios not ordered by start offset: %+v", scenarios)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Defaults()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--base-url=https://svc.example.com",
		"--rate=2",
		"--duration=1m",
		"--max-workers=4",
		"--header=X-Test=123",
		"--retry-attempts=3",
		"--retry-backoff=1s,2s",
		"--pace=every_10s=10s",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if len(cfg.Scenarios) != 1 {
		t.Fatalf("expected synthesized scenario, got %d", len(cfg.Scenarios))
	}
	s := cfg.Scenarios[0]
	if s.Name != "steady" || s.Executor != ExecutorRateBased || s.Rate != 2 || s.Duration != time.Minute || s.MaxWorkers != 4 || s.PreAllocated != 1 {
		t.Errorf("scenario = %+v", s)
	}
	if cfg.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Headers["X-Test"])
	}
	if cfg.Retry.MaxAttempts != 3 || len(cfg.Retry.Backoff) != 2 {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.Pacing.Phases["every_10s"] != 10*time.Second {
		t.Errorf("Pacing = %+v", cfg.Pacing)
	}
}

func TestScenarioFlagsRejectMultipleScenarios(t *testing.T) {
	cfg := Defaults()
	if err := applyProfile(cfg, "verify-tdx"); err != nil {
		t.Fatalf("applyProfile() error = %v", err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--duration=1m"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(cfg, fs); err == nil {
		t.Fatal("expected error when adjusting a multi-scenario profile")
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	args := []string{
		"--profile=evidence-quote",
		"--base-url=https://svc.example.com/",
		"--duration=2m",
	}

	cfg, err := loader.Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.TargetURL(""); got != "https://svc.example.com/evidence/tdx-quote" {
		t.Errorf("TargetURL = %q", got)
	}
	if len(cfg.Scenarios) != 1 || cfg.Scenarios[0].Duration != 2*time.Minute || cfg.Scenarios[0].Rate != 1 {
		t.Errorf("Scenarios = %+v", cfg.Scenarios)
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, want POST", cfg.Method)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
