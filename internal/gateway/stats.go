package gateway

import (
	"sync"
	"time"
)

// slowFraction marks a call as slow when its latency exceeds this fraction
// of the max response budget.
const slowFraction = 0.8

// latencyStats accumulates per-call latency metrics for health reporting.
// Safe for concurrent use.
type latencyStats struct {
	mu sync.Mutex

	requests     int
	failures     int
	totalLatency time.Duration
	slow         int

	slowThreshold time.Duration
}

func newLatencyStats(maxResponseTime time.Duration) *latencyStats {
	return &latencyStats{
		slowThreshold: time.Duration(float64(maxResponseTime) * slowFraction),
	}
}

func (s *latencyStats) recordSuccess(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.totalLatency += latency
	if latency > s.slowThreshold {
		s.slow++
	}
}

func (s *latencyStats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	s.failures++
}

// Stats is a point-in-time view of gateway latency metrics.
type Stats struct {
	Requests         int           `json:"total_requests"`
	Failures         int           `json:"failed_requests"`
	AvgLatency       time.Duration `json:"-"`
	AvgLatencyMS     float64       `json:"avg_response_time_ms"`
	SlowPercentage   float64       `json:"slow_requests_percentage"`
	PerformanceGrade string        `json:"performance_grade"`
}

func (s *latencyStats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{Requests: s.requests, Failures: s.failures}
	succeeded := s.requests - s.failures
	if succeeded > 0 {
		out.AvgLatency = s.totalLatency / time.Duration(succeeded)
		out.AvgLatencyMS = float64(out.AvgLatency.Microseconds()) / 1000
		out.SlowPercentage = float64(s.slow) / float64(succeeded) * 100
	}
	out.PerformanceGrade = grade(out.AvgLatency, out.SlowPercentage)
	return out
}

// grade buckets observed latency into a coarse A-D rating.
func grade(avg time.Duration, slowPct float64) string {
	switch {
	case avg < 2*time.Second && slowPct < 5:
		return "A"
	case avg < 5*time.Second && slowPct < 15:
		return "B"
	case avg < 10*time.Second && slowPct < 30:
		return "C"
	default:
		return "D"
	}
}
