// Package metrics aggregates iteration results for a load run.
//
// A [Collector] receives one [Record] per completed iteration (the final
// outcome after retries) and keeps overall and per-scenario counters plus HDR
// histograms of latency:
//
//	collector := metrics.NewCollector()
//	collector.Start()
//	collector.RecordIteration(metrics.Record{
//		Scenario: "steady",
//		Endpoint: "tdx-quote",
//		Phase:    "steady",
//		Status:   "200",
//		Latency:  120 * time.Millisecond,
//		Attempts: 1,
//		Passed:   true,
//	})
//	stats := collector.Stats(collector.Elapsed())
//
// Iterations that had to wait for a free worker are counted with
// [Collector.RecordDelayed].
//
// Observers attached at construction see every record. [PromObserver] exports
// them to Prometheus on a private registry.
package metrics
