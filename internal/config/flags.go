package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "evload",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// singleScenarioFlags shape the scenario synthesized from flags.
var singleScenarioFlags = []string{"executor", "rate", "time-unit", "duration", "workers", "pre-allocated", "max-workers"}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("profile", "", "Built-in load profile ("+strings.Join(ProfileNames(), ", ")+")")

	// Request flags
	flags.String("base-url", "", "Base URL of the service under test")
	flags.String("endpoint", "", "Endpoint path appended to the base URL")
	flags.String("endpoint-tag", "", "Value of the endpoint tag on requests, logs and metrics")
	flags.String("method", http.MethodPost, "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("payload", "", "Inline request body")
	flags.String("payload-file", "", "Path to file containing the request body")
	flags.Duration("timeout", 60*time.Second, "Per-request timeout")
	flags.Duration("run-budget", 0, "Upper bound on start offset plus duration of every scenario (0 disables)")

	// Single scenario flags
	flags.String("executor", string(ExecutorRateBased), "Executor for the flag-defined scenario (rate-based or fixed-concurrency)")
	flags.IntP("rate", "r", 0, "Iterations per time unit (rate-based)")
	flags.Duration("time-unit", time.Second, "Time unit for --rate")
	flags.DurationP("duration", "d", 0, "Scenario duration (e.g. 30s, 10m)")
	flags.IntP("workers", "c", 1, "Worker count (fixed-concurrency)")
	flags.Int("pre-allocated", 1, "Initial worker pool (rate-based)")
	flags.Int("max-workers", 0, "Worker pool ceiling (rate-based, defaults to --pre-allocated)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model for rate-based scenarios (uniform or poisson)")

	// Warmup, retry and pacing
	flags.Int("warmup-attempts", 0, "Sequential warmup requests before the scenarios start")
	flags.Duration("warmup-delay", 0, "Sleep after each warmup request")
	flags.Int("retry-attempts", 1, "Attempts per iteration on manifest contention (1 disables retries)")
	flags.String("retry-backoff", "", "Comma-separated backoff table, e.g. 5s,10s,20s,30s")
	flags.Duration("pace-default", 0, "Default iteration cadence for fixed-concurrency scenarios")
	flags.StringToString("pace", nil, "Per-phase cadence, e.g. every_10s=10s")

	// Output flags
	flags.String("output", string(OutputText), "Report format: text, json or yaml")
	flags.Bool("log-errors", true, "Log each failed check to stderr")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("summary-file", "", "Append a JSON line per run to this file")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9102)")
	flags.Bool("progress", false, "Print a progress line to stderr while running")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'http_req_failed:rate < 0.001')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables tracing")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS towards the OTLP collector")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests traced")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Bool("tracing-propagate", false, "Inject W3C trace headers into requests (defaults to on when tracing is enabled)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintln(out, "\nProfiles:")
	for _, name := range ProfileNames() {
		p, _ := LookupProfile(name)
		fmt.Fprintf(out, "  %-22s %s\n", p.Name, p.Description)
	}
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the profile and config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"base-url", &cfg.BaseURL},
		{"endpoint", &cfg.Endpoint},
		{"endpoint-tag", &cfg.EndpointTag},
		{"method", &cfg.Method},
		{"log-level", &cfg.LogLevel},
		{"log-format", &cfg.LogFormat},
		{"summary-file", &cfg.SummaryFile},
		{"metrics-addr", &cfg.MetricsAddr},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range strs {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	if fs.Changed("payload") {
		val, err := fs.GetString("payload")
		if err != nil {
			return err
		}
		cfg.Payload = val
		cfg.PayloadFile = ""
	}
	if fs.Changed("payload-file") {
		val, err := fs.GetString("payload-file")
		if err != nil {
			return err
		}
		cfg.PayloadFile = val
		cfg.Payload = ""
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("run-budget") {
		val, err := fs.GetDuration("run-budget")
		if err != nil {
			return err
		}
		cfg.RunBudget = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}

	if err := applyScenarioFlags(cfg, fs); err != nil {
		return err
	}

	if fs.Changed("warmup-attempts") {
		val, err := fs.GetInt("warmup-attempts")
		if err != nil {
			return err
		}
		cfg.Warmup.Attempts = val
	}
	if fs.Changed("warmup-delay") {
		val, err := fs.GetDuration("warmup-delay")
		if err != nil {
			return err
		}
		cfg.Warmup.Delay = val
	}
	if fs.Changed("retry-attempts") {
		val, err := fs.GetInt("retry-attempts")
		if err != nil {
			return err
		}
		cfg.Retry.MaxAttempts = val
	}
	if fs.Changed("retry-backoff") {
		val, err := fs.GetString("retry-backoff")
		if err != nil {
			return err
		}
		backoff, err := asDurationSlice(val)
		if err != nil {
			return fmt.Errorf("retry-backoff: %w", err)
		}
		cfg.Retry.Backoff = backoff
	}
	if fs.Changed("pace-default") {
		val, err := fs.GetDuration("pace-default")
		if err != nil {
			return err
		}
		cfg.Pacing.Default = val
	}
	if fs.Changed("pace") {
		val, err := fs.GetStringToString("pace")
		if err != nil {
			return err
		}
		if cfg.Pacing.Phases == nil {
			cfg.Pacing.Phases = map[string]time.Duration{}
		}
		for phase, raw := range val {
			d, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("pace %s: %w", phase, err)
			}
			cfg.Pacing.Phases[strings.TrimSpace(phase)] = d
		}
	}

	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}

// applyScenarioFlags edits the only scenario, or synthesizes one named
// "steady" when none is configured.
func applyScenarioFlags(cfg *Config, fs *pflag.FlagSet) error {
	changed := false
	for _, name := range singleScenarioFlags {
		if fs.Changed(name) {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	switch len(cfg.Scenarios) {
	case 0:
		workers, _ := fs.GetInt("workers")
		pre, _ := fs.GetInt("pre-allocated")
		unit, _ := fs.GetDuration("time-unit")
		cfg.Scenarios = []ScenarioConfig{{
			Name:         "steady",
			Executor:     ExecutorRateBased,
			TimeUnit:     unit,
			Workers:      workers,
			PreAllocated: pre,
		}}
	case 1:
	default:
		return fmt.Errorf("--%s cannot adjust %d scenarios; edit them in the config file", strings.Join(singleScenarioFlags, ", --"), len(cfg.Scenarios))
	}

	s := &cfg.Scenarios[0]
	if fs.Changed("executor") {
		val, err := fs.GetString("executor")
		if err != nil {
			return err
		}
		s.Executor = NormalizeExecutor(val)
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		s.Rate = val
	}
	if fs.Changed("time-unit") {
		val, err := fs.GetDuration("time-unit")
		if err != nil {
			return err
		}
		s.TimeUnit = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		s.Duration = val
	}
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		s.Workers = val
	}
	if fs.Changed("pre-allocated") {
		val, err := fs.GetInt("pre-allocated")
		if err != nil {
			return err
		}
		s.PreAllocated = val
	}
	if fs.Changed("max-workers") {
		val, err := fs.GetInt("max-workers")
		if err != nil {
			return err
		}
		s.MaxWorkers = val
	}
	return nil
}
