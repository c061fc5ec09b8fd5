// Loadtest polls the status backend from many concurrent workers and
// reports throughput, latency percentiles and failures by kind.
//
// Usage:
//
//	go run ./scripts/loadtest --base-url http://localhost:5000 --concurrency 10 --requests 1000
//	go run ./scripts/loadtest --concurrency 50 --requests 5000 --out summary.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	"github.com/angeloszaimis/healthdash/internal/statusapi"
)

type summary struct {
	Target        string           `json:"target"`
	Requests      int              `json:"requests"`
	Concurrency   int              `json:"concurrency"`
	Success       int64            `json:"success"`
	Failures      map[string]int64 `json:"failures"`
	DurationMS    int64            `json:"duration_ms"`
	ThroughputRPS float64          `json:"throughput_rps"`
	P50           float64          `json:"p50_ms"`
	P90           float64          `json:"p90_ms"`
	P95           float64          `json:"p95_ms"`
	P99           float64          `json:"p99_ms"`
}

func main() {
	var (
		baseURL     = pflag.String("base-url", "http://localhost:5000", "status backend base URL")
		path        = pflag.String("path", statusapi.DefaultStatusPath, "status endpoint")
		concurrency = pflag.Int("concurrency", 10, "number of concurrent workers")
		requests    = pflag.Int("requests", 100, "total number of polls")
		timeout     = pflag.Duration("timeout", 10*time.Second, "per-request timeout")
		outJSON     = pflag.String("out", "", "write a JSON summary to this file")
		verbose     = pflag.BoolP("verbose", "v", false, "log every poll")
	)
	pflag.Parse()

	client, err := statusapi.New(*baseURL, *timeout, statusapi.WithStatusPath(*path))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var success int64
	failures := make(map[string]int64)
	var failMu sync.Mutex

	var latencies []time.Duration
	var latMu sync.Mutex

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				start := time.Now()
				services, err := client.FetchStatus(context.Background())
				dur := time.Since(start)

				latMu.Lock()
				latencies = append(latencies, dur)
				latMu.Unlock()

				if err != nil {
					failMu.Lock()
					failures[statusapi.KindOf(err).String()]++
					failMu.Unlock()
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}

				atomic.AddInt64(&success, 1)
				if *verbose {
					fmt.Printf("[%d] idx=%d services=%d dur=%v\n", workerID, idx, len(services), dur)
				}
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	elapsed := time.Since(testStart)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pick := func(p float64) float64 {
		if len(latencies) == 0 {
			return 0
		}
		return float64(latencies[int(float64(len(latencies)-1)*p)].Microseconds()) / 1000.0
	}

	report := summary{
		Target:        *baseURL + *path,
		Requests:      *requests,
		Concurrency:   *concurrency,
		Success:       success,
		Failures:      failures,
		DurationMS:    elapsed.Milliseconds(),
		ThroughputRPS: float64(len(latencies)) / elapsed.Seconds(),
		P50:           pick(0.50),
		P90:           pick(0.90),
		P95:           pick(0.95),
		P99:           pick(0.99),
	}

	fmt.Println("--- Poll Load Test Summary ---")
	fmt.Printf("Target: %s\n", report.Target)
	fmt.Printf("Requests: %d  Concurrency: %d\n", report.Requests, report.Concurrency)
	fmt.Printf("Success: %d  Failures: %v\n", report.Success, report.Failures)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", elapsed, report.ThroughputRPS)
	fmt.Printf("Latency ms: p50=%.3f p90=%.3f p95=%.3f p99=%.3f\n", report.P50, report.P90, report.P95, report.P99)

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if len(failures) > 0 {
		os.Exit(2)
	}
}
