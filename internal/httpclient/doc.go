// Package httpclient issues the individual HTTP calls of a load run.
//
// A [RequestBuilder] produces identical requests for one endpoint from a
// method, URL, header set and [BodySource]. The [Executor] sends a single
// request under a per-request timeout and folds everything that happened into
// an [Outcome]:
//
//	exec := httpclient.NewExecutor(httpclient.NewClient(0), tracer)
//	out := exec.Execute(ctx, httpclient.Request{
//		Builder: builder,
//		Timeout: 60 * time.Second,
//		Tags:    httpclient.Tags{"endpoint": "verify-tdx-quote", "phase": "steady"},
//	})
//	if !out.OK() {
//		log.Printf("status=%s", out.StatusLabel())
//	}
//
// Requests that never produce a response carry [StatusTransportError] so
// callers can treat them like any other failed status. The executor does not
// retry; retry policy lives in the runner package.
//
// [Target] binds an executor to a builder so schedulers can invoke the same
// endpoint repeatedly with per-scenario tags.
package httpclient
