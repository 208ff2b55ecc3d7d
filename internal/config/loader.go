package config

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used before any profile, file or flag
// is applied.
func Defaults() *Config {
	return &Config{
		Method:    http.MethodPost,
		Headers:   map[string]string{"Content-Type": "application/json"},
		Timeout:   60 * time.Second,
		Retry:     RetryConfig{MaxAttempts: 1},
		Arrival:   ArrivalConfig{Model: ArrivalModelUniform},
		Output:    OutputText,
		LogErrors: true,
		LogLevel:  "info",
		LogFormat: "text",
		Tracing:   TracingConfig{SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a
// Config. Settings are layered: built-in profile, then config file, then
// flags.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}
	settings := cfgViper.AllSettings()

	cfg := Defaults()
	cfg.ConfigFile = configPath

	profile, err := selectProfile(settings, flagSet)
	if err != nil {
		return nil, err
	}
	if err := applyProfile(cfg, profile); err != nil {
		return nil, err
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.PayloadFile = strings.TrimSpace(cfg.PayloadFile)
	cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(string(cfg.Output))))

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

// selectProfile picks the profile named by --profile, falling back to the
// config file's profile key.
func selectProfile(settings map[string]interface{}, fs *pflag.FlagSet) (string, error) {
	if fs.Changed("profile") {
		return fs.GetString("profile")
	}
	if raw, ok := lookupSetting(settings, "profile"); ok {
		val, err := asString(raw)
		if err != nil {
			return "", fmt.Errorf("profile: %w", err)
		}
		return strings.TrimSpace(val), nil
	}
	return "", nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringFields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"base_url", "baseurl", "base-url"}, &cfg.BaseURL},
		{[]string{"endpoint"}, &cfg.Endpoint},
		{[]string{"endpoint_tag", "endpointtag", "endpoint-tag"}, &cfg.EndpointTag},
		{[]string{"method"}, &cfg.Method},
		{[]string{"log_level", "loglevel", "log-level"}, &cfg.LogLevel},
		{[]string{"log_format", "logformat", "log-format"}, &cfg.LogFormat},
		{[]string{"summary_file", "summaryfile", "summary-file"}, &cfg.SummaryFile},
		{[]string{"metrics_addr", "metricsaddr", "metrics-addr"}, &cfg.MetricsAddr},
	}
	for _, f := range stringFields {
		raw, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.keys[0], err)
		}
		if val = strings.TrimSpace(val); val != "" {
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "payload"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		cfg.Payload = val
		cfg.PayloadFile = ""
	}

	if raw, ok := lookupSetting(settings, "payload_file", "payloadfile", "payload-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("payload_file: %w", err)
		}
		cfg.PayloadFile = val
		cfg.Payload = ""
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "run_budget", "runbudget", "run-budget"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("run_budget: %w", err)
		}
		cfg.RunBudget = dur
	}

	if raw, ok := lookupSetting(settings, "scenarios"); ok {
		scenarios, err := parseScenarios(raw)
		if err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}
		cfg.Scenarios = scenarios
	}

	if raw, ok := lookupSetting(settings, "warmup"); ok {
		warmup, err := parseWarmup(raw, cfg.Warmup)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		cfg.Warmup = warmup
	}

	if raw, ok := lookupSetting(settings, "retry"); ok {
		retry, err := parseRetry(raw, cfg.Retry)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		cfg.Retry = retry
	}

	if raw, ok := lookupSetting(settings, "pacing"); ok {
		pacing, err := parsePacing(raw, cfg.Pacing)
		if err != nil {
			return fmt.Errorf("pacing: %w", err)
		}
		cfg.Pacing = pacing
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Output = OutputFormat(strings.ToLower(val))
		}
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseScenarios(value interface{}) ([]ScenarioConfig, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		// Also accept the k6 layout: a map keyed by scenario name.
		entries, mapErr := toStringKeyMap(value)
		if mapErr != nil {
			return nil, err
		}
		return parseNamedScenarios(entries)
	}
	scenarios := make([]ScenarioConfig, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		scenario, err := buildScenario(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func parseNamedScenarios(entries map[string]interface{}) ([]ScenarioConfig, error) {
	scenarios := make([]ScenarioConfig, 0, len(entries))
	for name, item := range entries {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenario, err := buildScenario(entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if scenario.Name == "" {
			scenario.Name = name
		}
		scenarios = append(scenarios, scenario)
	}
	// Map order is random; start offsets give the natural order.
	sortScenarios(scenarios)
	return scenarios, nil
}

func buildScenario(settings map[string]interface{}) (ScenarioConfig, error) {
	var s ScenarioConfig
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return ScenarioConfig{}, fmt.Errorf("name: %w", err)
		}
		s.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "executor"); ok {
		val, err := asString(raw)
		if err != nil {
			return ScenarioConfig{}, fmt.Errorf("executor: %w", err)
		}
		s.Executor = NormalizeExecutor(val)
	}
	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"rate"}, &s.Rate},
		{[]string{"pre_allocated", "preallocated", "pre-allocated", "preallocatedvus"}, &s.PreAllocated},
		{[]string{"max_workers", "maxworkers", "max-workers", "maxvus"}, &s.MaxWorkers},
		{[]string{"workers", "vus"}, &s.Workers},
	}
	for _, f := range ints {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return ScenarioConfig{}, fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}
	durations := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"time_unit", "timeunit", "time-unit"}, &s.TimeUnit},
		{[]string{"duration"}, &s.Duration},
		{[]string{"start_offset", "startoffset", "start-offset", "starttime"}, &s.StartOffset},
	}
	for _, f := range durations {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return ScenarioConfig{}, fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = dur
		}
	}
	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"phase"}, &s.Phase},
		{[]string{"endpoint"}, &s.Endpoint},
		{[]string{"endpoint_tag", "endpointtag", "endpoint-tag"}, &s.EndpointTag},
	}
	for _, f := range strs {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return ScenarioConfig{}, fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}
	if raw, ok := lookupSetting(settings, "retry"); ok {
		retry, err := parseScenarioRetry(raw)
		if err != nil {
			return ScenarioConfig{}, fmt.Errorf("retry: %w", err)
		}
		s.Retry = retry
	}
	return s, nil
}

// parseScenarioRetry accepts false (single attempt), true (inherit) or a
// retry map.
func parseScenarioRetry(value interface{}) (*RetryConfig, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			return nil, nil
		}
		return &RetryConfig{MaxAttempts: 1}, nil
	default:
		retry, err := parseRetry(value, RetryConfig{MaxAttempts: 1})
		if err != nil {
			return nil, err
		}
		return &retry, nil
	}
}

func parseWarmup(value interface{}, base WarmupConfig) (WarmupConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return WarmupConfig{}, err
	}
	w := base
	if raw, ok := lookupSetting(entry, "attempts"); ok {
		val, err := asInt(raw)
		if err != nil {
			return WarmupConfig{}, fmt.Errorf("attempts: %w", err)
		}
		w.Attempts = val
	}
	if raw, ok := lookupSetting(entry, "delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return WarmupConfig{}, fmt.Errorf("delay: %w", err)
		}
		w.Delay = dur
	}
	if raw, ok := lookupSetting(entry, "max_duration", "maxduration", "max-duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return WarmupConfig{}, fmt.Errorf("max_duration: %w", err)
		}
		w.MaxDuration = dur
	}
	return w, nil
}

func parseRetry(value interface{}, base RetryConfig) (RetryConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return RetryConfig{}, err
	}
	r := base
	if raw, ok := lookupSetting(entry, "max_attempts", "maxattempts", "max-attempts"); ok {
		val, err := asInt(raw)
		if err != nil {
			return RetryConfig{}, fmt.Errorf("max_attempts: %w", err)
		}
		r.MaxAttempts = val
	}
	if raw, ok := lookupSetting(entry, "backoff"); ok {
		backoff, err := asDurationSlice(raw)
		if err != nil {
			return RetryConfig{}, fmt.Errorf("backoff: %w", err)
		}
		r.Backoff = backoff
	}
	if raw, ok := lookupSetting(entry, "rate_limited_status", "ratelimitedstatus"); ok {
		val, err := asInt(raw)
		if err != nil {
			return RetryConfig{}, fmt.Errorf("rate_limited_status: %w", err)
		}
		r.RateLimitedStatus = val
	}
	if raw, ok := lookupSetting(entry, "unprocessable_status", "unprocessablestatus"); ok {
		val, err := asInt(raw)
		if err != nil {
			return RetryConfig{}, fmt.Errorf("unprocessable_status: %w", err)
		}
		r.UnprocessableStatus = val
	}
	if raw, ok := lookupSetting(entry, "rate_limit_marker", "ratelimitmarker"); ok {
		val, err := asString(raw)
		if err != nil {
			return RetryConfig{}, fmt.Errorf("rate_limit_marker: %w", err)
		}
		r.RateLimitMarker = val
	}
	if raw, ok := lookupSetting(entry, "contention_marker", "contentionmarker"); ok {
		val, err := asString(raw)
		if err != nil {
			return RetryConfig{}, fmt.Errorf("contention_marker: %w", err)
		}
		r.ContentionMarker = val
	}
	return r, nil
}

func parsePacing(value interface{}, base PacingConfig) (PacingConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return PacingConfig{}, err
	}
	p := PacingConfig{Default: base.Default, Phases: map[string]time.Duration{}}
	for k, v := range base.Phases {
		p.Phases[k] = v
	}
	if raw, ok := lookupSetting(entry, "default"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return PacingConfig{}, fmt.Errorf("default: %w", err)
		}
		p.Default = dur
	}
	if raw, ok := lookupSetting(entry, "phases"); ok {
		phases, err := asDurationMap(raw)
		if err != nil {
			return PacingConfig{}, fmt.Errorf("phases: %w", err)
		}
		for k, v := range phases {
			p.Phases[k] = v
		}
	}
	return p, nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("model: %w", err)
			}
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	if value == nil {
		return base, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	t := base
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(entry, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "service_name", "servicename", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return t, nil
}

func sortScenarios(scenarios []ScenarioConfig) {
	sort.SliceStable(scenarios, func(i, j int) bool {
		if scenarios[i].StartOffset != scenarios[j].StartOffset {
			return scenarios[i].StartOffset < scenarios[j].StartOffset
		}
		return scenarios[i].Name < scenarios[j].Name
	})
}
