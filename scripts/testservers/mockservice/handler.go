package main

import (
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

var endpoints = []string{
	"/evidence/infrastructure",
	"/evidence/tdx-quote",
	"/verify/tdx-quote",
	"/verify/workloads",
}

// contention controls how often the mock answers with the overloaded
// manifest signatures. Every Nth request per kind is rejected; 0 disables.
type contention struct {
	rateLimitEvery     int64
	unprocessableEvery int64
	latency            time.Duration
}

func newMux(c contention) *http.ServeMux {
	var count atomic.Int64
	mux := http.NewServeMux()
	for _, path := range endpoints {
		mux.HandleFunc("POST "+path, func(w http.ResponseWriter, r *http.Request) {
			n := count.Add(1)
			body, _ := io.ReadAll(r.Body)
			if c.latency > 0 {
				time.Sleep(c.latency)
			}
			switch {
			case !json.Valid(body):
				respondJSON(w, http.StatusBadRequest, map[string]any{"message": "request body is not JSON"})
			case c.rateLimitEvery > 0 && n%c.rateLimitEvery == 0:
				respondJSON(w, http.StatusTooManyRequests, map[string]any{"message": "too many requests"})
			case c.unprocessableEvery > 0 && n%c.unprocessableEvery == 0:
				respondJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "rate limited: manifest busy (429)"})
			default:
				respondJSON(w, http.StatusOK, map[string]any{"ok": true, "path": r.URL.Path, "request": n})
			}
		})
	}
	return mux
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
