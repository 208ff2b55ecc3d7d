// Command mockservice serves the evidence and verification endpoints locally
// so profiles can be exercised without the real service.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	port := flag.Int("port", 8080, "Listening port")
	every429 := flag.Int64("rate-limit-every", 0, "Answer every Nth request with 429")
	every422 := flag.Int64("manifest-busy-every", 0, "Answer every Nth request with 422 manifest contention")
	latency := flag.Duration("latency", 0, "Artificial latency per request")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}

	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(contention{rateLimitEvery: *every429, unprocessableEvery: *every422, latency: *latency}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("mock evidence service listening on %s", addr)
	log.Fatal(srv.ListenAndServe())
}
