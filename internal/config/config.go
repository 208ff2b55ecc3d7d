package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// ExecutorName names a scenario traffic shape.
type ExecutorName string

const (
	ExecutorRateBased        ExecutorName = "rate-based"
	ExecutorFixedConcurrency ExecutorName = "fixed-concurrency"
)

// NormalizeExecutor maps k6 executor names onto evload's.
func NormalizeExecutor(name string) ExecutorName {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rate-based", "rate_based", "constant-arrival-rate":
		return ExecutorRateBased
	case "fixed-concurrency", "fixed_concurrency", "constant-vus":
		return ExecutorFixedConcurrency
	default:
		return ExecutorName(strings.ToLower(strings.TrimSpace(name)))
	}
}

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type Config struct {
	Profile     string            `mapstructure:"profile"`
	BaseURL     string            `mapstructure:"base_url"`
	Endpoint    string            `mapstructure:"endpoint"`
	EndpointTag string            `mapstructure:"endpoint_tag"`
	Method      string            `mapstructure:"method"`
	Headers     map[string]string `mapstructure:"headers"`
	Payload     string            `mapstructure:"payload"`
	PayloadFile string            `mapstructure:"payload_file"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	RunBudget   time.Duration     `mapstructure:"run_budget"`
	Scenarios   []ScenarioConfig  `mapstructure:"scenarios"`
	Warmup      WarmupConfig      `mapstructure:"warmup"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Pacing      PacingConfig      `mapstructure:"pacing"`
	Arrival     ArrivalConfig     `mapstructure:"arrival"`
	Thresholds  []string          `mapstructure:"thresholds"`
	Output      OutputFormat      `mapstructure:"output"`
	LogErrors   bool              `mapstructure:"log_errors"`
	LogLevel    string            `mapstructure:"log_level"`
	LogFormat   string            `mapstructure:"log_format"`
	SummaryFile string            `mapstructure:"summary_file"`
	MetricsAddr string            `mapstructure:"metrics_addr"`
	Progress    bool              `mapstructure:"progress"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	ConfigFile  string            `mapstructure:"-"`
}

type ScenarioConfig struct {
	Name         string        `mapstructure:"name"`
	Executor     ExecutorName  `mapstructure:"executor"`
	Rate         int           `mapstructure:"rate"`
	TimeUnit     time.Duration `mapstructure:"time_unit"`
	Duration     time.Duration `mapstructure:"duration"`
	StartOffset  time.Duration `mapstructure:"start_offset"`
	PreAllocated int           `mapstructure:"pre_allocated"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	Workers      int           `mapstructure:"workers"`
	Phase        string        `mapstructure:"phase"`
	Endpoint     string        `mapstructure:"endpoint"`     // overrides Config.Endpoint
	EndpointTag  string        `mapstructure:"endpoint_tag"` // overrides Config.EndpointTag
	Retry        *RetryConfig  `mapstructure:"retry"`        // nil inherits Config.Retry
}

type WarmupConfig struct {
	Attempts    int           `mapstructure:"attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

type RetryConfig struct {
	MaxAttempts         int             `mapstructure:"max_attempts"`
	Backoff             []time.Duration `mapstructure:"backoff"`
	RateLimitedStatus   int             `mapstructure:"rate_limited_status"`
	UnprocessableStatus int             `mapstructure:"unprocessable_status"`
	RateLimitMarker     string          `mapstructure:"rate_limit_marker"`
	ContentionMarker    string          `mapstructure:"contention_marker"`
}

// Enabled reports whether more than one attempt is allowed.
func (r RetryConfig) Enabled() bool { return r.MaxAttempts > 1 }

type PacingConfig struct {
	Default time.Duration            `mapstructure:"default"`
	Phases  map[string]time.Duration `mapstructure:"phases"`
}

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
	Propagate   *bool   `mapstructure:"propagate"` // nil follows Enabled
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// TargetURL joins the base URL with endpoint, or the default endpoint when
// endpoint is empty.
func (c Config) TargetURL(endpoint string) string {
	if endpoint == "" {
		endpoint = c.Endpoint
	}
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if endpoint == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(endpoint, "/")
}

// RetryFor returns the retry settings a scenario runs with.
func (c Config) RetryFor(s ScenarioConfig) RetryConfig {
	if s.Retry != nil {
		return *s.Retry
	}
	return c.Retry
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if strings.TrimSpace(c.BaseURL) == "" && !strings.Contains(c.Endpoint, "://") {
		issues = append(issues, "base_url is required (use --help for usage information)")
	} else if u, err := url.Parse(c.TargetURL("")); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target %q is not an absolute URL", c.TargetURL("")))
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.RunBudget < 0 {
		issues = append(issues, "run_budget must be >= 0")
	}
	if strings.TrimSpace(c.Payload) != "" && strings.TrimSpace(c.PayloadFile) != "" {
		issues = append(issues, "payload and payload_file are mutually exclusive")
	}

	if len(c.Scenarios) == 0 {
		issues = append(issues, "at least one scenario is required (set --profile, scenarios, or --executor)")
	}
	issues = append(issues, validateScenarios(c.Scenarios, c.RunBudget)...)
	for _, s := range c.Scenarios {
		if s.Executor == ExecutorRateBased && s.TimeUnit > 0 && s.Rate > 0 && float64(s.Rate)/s.TimeUnit.Seconds() > 1000 {
			warnings = append(warnings, fmt.Sprintf("WARNING: scenario %q runs above 1000 iterations per second. Ensure you have authorization to test the target system.", s.Name))
		}
	}

	issues = append(issues, validateRetry("retry", c.Retry)...)
	issues = append(issues, validateWarmup(c.Warmup)...)
	issues = append(issues, validatePacing(c.Pacing)...)
	issues = append(issues, validateArrivalConfig(c.Arrival)...)

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q is not supported (text, json, yaml)", c.Output))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format %q is not supported (text, json)", c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not supported", c.LogLevel))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0 and 1")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol %q is not supported (grpc, http)", c.Tracing.Protocol))
	}

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateScenarios(scenarios []ScenarioConfig, budget time.Duration) []string {
	var issues []string
	seen := map[string]int{}
	for idx, s := range scenarios {
		label := fmt.Sprintf("scenarios[%d]", idx)
		name := strings.TrimSpace(s.Name)
		if name == "" {
			issues = append(issues, label+": name is required")
		} else if prev, ok := seen[name]; ok {
			issues = append(issues, fmt.Sprintf("%s: duplicate name %q also defined at index %d", label, name, prev))
		} else {
			seen[name] = idx
		}
		if s.Duration <= 0 {
			issues = append(issues, label+": duration must be > 0")
		}
		if s.StartOffset < 0 {
			issues = append(issues, label+": start_offset must be >= 0")
		}
		if budget > 0 && s.StartOffset+s.Duration > budget {
			issues = append(issues, fmt.Sprintf("%s: start_offset + duration (%s) exceeds run_budget %s", label, s.StartOffset+s.Duration, budget))
		}
		switch s.Executor {
		case ExecutorRateBased:
			if s.Rate <= 0 {
				issues = append(issues, label+": rate must be > 0 for rate-based")
			}
			if s.TimeUnit < 0 {
				issues = append(issues, label+": time_unit must be >= 0")
			}
			if s.PreAllocated < 0 || s.MaxWorkers < 0 {
				issues = append(issues, label+": pre_allocated and max_workers must be >= 0")
			}
			if s.MaxWorkers > 0 && s.PreAllocated > s.MaxWorkers {
				issues = append(issues, label+": pre_allocated must be <= max_workers")
			}
		case ExecutorFixedConcurrency:
			if s.Workers < 1 {
				issues = append(issues, label+": workers must be >= 1 for fixed-concurrency")
			}
		default:
			issues = append(issues, fmt.Sprintf("%s: unsupported executor %q", label, s.Executor))
		}
		if s.Retry != nil {
			issues = append(issues, validateRetry(label+".retry", *s.Retry)...)
		}
	}
	return issues
}

func validateRetry(label string, r RetryConfig) []string {
	var issues []string
	if r.MaxAttempts < 0 {
		issues = append(issues, label+": max_attempts must be >= 0")
	}
	for i, d := range r.Backoff {
		if d < 0 {
			issues = append(issues, fmt.Sprintf("%s: backoff[%d] must be >= 0", label, i))
		}
	}
	if r.RateLimitedStatus < 0 || r.RateLimitedStatus > 599 || r.UnprocessableStatus < 0 || r.UnprocessableStatus > 599 {
		issues = append(issues, label+": status codes must be valid HTTP statuses")
	}
	return issues
}

func validateWarmup(w WarmupConfig) []string {
	var issues []string
	if w.Attempts < 0 {
		issues = append(issues, "warmup: attempts must be >= 0")
	}
	if w.Delay < 0 || w.MaxDuration < 0 {
		issues = append(issues, "warmup: delay and max_duration must be >= 0")
	}
	return issues
}

func validatePacing(p PacingConfig) []string {
	var issues []string
	if p.Default < 0 {
		issues = append(issues, "pacing: default must be >= 0")
	}
	for phase, d := range p.Phases {
		if d < 0 {
			issues = append(issues, fmt.Sprintf("pacing: phase %q must be >= 0", phase))
		}
	}
	return issues
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}
