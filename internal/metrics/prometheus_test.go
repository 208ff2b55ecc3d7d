package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/attestify/evload/internal/metrics"
)

func TestPromObserverCounts(t *testing.T) {
	prom := metrics.NewPromObserver("01HZRUN")
	c := metrics.NewCollector(prom)

	c.RecordIteration(metrics.Record{Scenario: "steady", Endpoint: "tdx-quote", Phase: "steady", Status: "200", Latency: 20 * time.Millisecond, Attempts: 3, Passed: true})
	c.RecordIteration(metrics.Record{Scenario: "steady", Endpoint: "tdx-quote", Phase: "steady", Status: "429", Latency: 5 * time.Millisecond, Attempts: 4, Exhausted: true})
	c.RecordDelayed("steady")
	prom.SetWorkers("steady", 3)

	count, err := testutil.GatherAndCount(prom.Registry(),
		"evload_iterations_total",
		"evload_request_attempts_total",
		"evload_retries_exhausted_total",
		"evload_iterations_delayed_total",
		"evload_workers",
	)
	require.NoError(t, err)
	// Two iteration series (200 and 429) plus one series for each other metric.
	require.Equal(t, 6, count)

	expected := `
# HELP evload_request_attempts_total HTTP attempts issued, including retries
# TYPE evload_request_attempts_total counter
evload_request_attempts_total{run_id="01HZRUN",scenario="steady"} 7
`
	require.NoError(t, testutil.GatherAndCompare(prom.Registry(), strings.NewReader(expected), "evload_request_attempts_total"))
}

func TestPromObserverHandler(t *testing.T) {
	prom := metrics.NewPromObserver("")
	prom.ObserveIteration(metrics.Record{Scenario: "every_10s", Status: "200", Passed: true, Attempts: 1})

	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `evload_iterations_total{endpoint="",passed="true",phase="",scenario="every_10s",status="200"} 1`)
}
