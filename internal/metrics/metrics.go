package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxLatencySamples bounds the latency window kept for percentiles.
const maxLatencySamples = 1000

// Metrics aggregates poll outcomes of the dashboard.
type Metrics struct {
	mutex        sync.RWMutex
	polls        int64
	successes    int64
	discarded    int64
	failures     map[string]int64
	latencies    []time.Duration
	lastServices int
	lastSuccess  time.Time
	startTime    time.Time
}

type Snapshot struct {
	TotalPolls       int64            `json:"total_polls"`
	Successes        int64            `json:"successes"`
	Discarded        int64            `json:"discarded"`
	FailureTotal     int64            `json:"failure_total"`
	Failures         map[string]int64 `json:"failures"`
	AvgLatency       time.Duration    `json:"avg_latency"`
	P95Latency       time.Duration    `json:"p95_latency"`
	LastServiceCount int              `json:"last_service_count"`
	LastSuccess      time.Time        `json:"last_success"`
	Uptime           time.Duration    `json:"uptime"`
}

func (m *Metrics) IncrementPolls() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.polls++
}

func (m *Metrics) RecordSuccess(duration time.Duration, services int, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.successes++
	m.lastServices = services
	m.lastSuccess = at
	m.recordLatency(duration)
}

func (m *Metrics) RecordFailure(kind string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.failures[kind]++
	m.recordLatency(duration)
}

func (m *Metrics) RecordDiscarded() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.discarded++
}

// recordLatency must be called with the mutex held.
func (m *Metrics) recordLatency(d time.Duration) {
	m.latencies = append(m.latencies, d)
	if len(m.latencies) > maxLatencySamples {
		m.latencies = m.latencies[1:]
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalPolls:       m.polls,
		Successes:        m.successes,
		Discarded:        m.discarded,
		Failures:         make(map[string]int64, len(m.failures)),
		LastServiceCount: m.lastServices,
		LastSuccess:      m.lastSuccess,
		Uptime:           time.Since(m.startTime),
	}

	for kind, n := range m.failures {
		snap.Failures[kind] = n
		snap.FailureTotal += n
	}

	if len(m.latencies) > 0 {
		sorted := make([]time.Duration, len(m.latencies))
		copy(sorted, m.latencies)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.AvgLatency = average(sorted)
		snap.P95Latency = percentile(sorted, 0.95)
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		failures:  make(map[string]int64),
		startTime: time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
