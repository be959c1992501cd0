package observability

import (
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects request counters and latencies per API operation.
// The same observations are exported to a Prometheus registry.
type Metrics struct {
	mu sync.Mutex

	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	matches         *prometheus.CounterVec

	requestTotal  atomic.Int64
	requestFailed atomic.Int64

	operations map[string]*OperationMetrics

	// durations is a FIFO window used for percentiles.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents metrics for a single operation.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a metrics collector keeping the last maxDurations latencies.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockwear",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"operation", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockwear",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockwear",
				Subsystem: "recognition",
				Name:      "matches_total",
				Help:      "Total number of recognition attempts by confidence tier and outcome",
			},
			[]string{"tier", "success"},
		),
		operations:   make(map[string]*OperationMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
	m.registry.MustRegister(m.requests, m.requestDuration, m.matches)
	return m
}

// Registry returns the Prometheus registry holding the exported metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordMatch counts one recognition attempt.
func (m *Metrics) RecordMatch(tier string, success bool) {
	m.matches.WithLabelValues(tier, strconv.FormatBool(success)).Inc()
}

// Record records one finished request. Statuses of 500 and above count as failures.
func (m *Metrics) Record(operation string, status int, duration time.Duration) {
	failed := status >= 500
	m.requests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())

	m.requestTotal.Add(1)
	om := m.operation(operation)
	om.executionCount.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if failed {
		m.requestFailed.Add(1)
		om.errorCount.Add(1)
	}

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

func (m *Metrics) operation(name string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	om, ok := m.operations[name]
	if !ok {
		om = &OperationMetrics{}
		m.operations[name] = om
	}
	return om
}

// Reset resets all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.requests.Reset()
	m.requestDuration.Reset()
	m.matches.Reset()

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	operations := make(map[string]*OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.executionCount.Load()
		snapshot := &OperationSnapshot{
			ExecutionCount: count,
			TotalDuration:  om.totalDuration.Load(),
			ErrorCount:     om.errorCount.Load(),
		}
		if count > 0 {
			snapshot.AverageDuration = snapshot.TotalDuration / count
		}
		operations[name] = snapshot
	}

	sorted := slices.Clone(m.durations)
	slices.Sort(sorted)
	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		Operations:    operations,
		P50:           percentile(sorted, 50),
		P95:           percentile(sorted, 95),
		DurationCount: len(sorted),
	}
}

// percentile uses the nearest-rank method on sorted durations.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64
	RequestFailed int64
	Operations    map[string]*OperationSnapshot
	P50           time.Duration
	P95           time.Duration
	DurationCount int
}

// OperationSnapshot represents metrics for a specific operation.
type OperationSnapshot struct {
	ExecutionCount  int64
	TotalDuration   int64
	ErrorCount      int64
	AverageDuration int64
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}

// AverageDuration returns the mean latency over all operations in milliseconds.
func (s *MetricsSnapshot) AverageDuration() int64 {
	if s.RequestTotal == 0 {
		return 0
	}
	var total int64
	for _, op := range s.Operations {
		total += op.TotalDuration
	}
	return total / s.RequestTotal
}
