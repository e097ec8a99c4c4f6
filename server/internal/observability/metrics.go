package observability

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for scheduling operations.
type Metrics struct {
	mu sync.Mutex

	requestTotal  atomic.Int64
	requestFailed atomic.Int64
	fetchFailures atomic.Int64
	failOpen      atomic.Int64

	operations map[string]*OperationMetrics
	outcomes   map[string]int64

	// Sliding window of recent request durations.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics represents metrics for one API operation.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		operations:   make(map[string]*OperationMetrics),
		outcomes:     make(map[string]int64),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordRequest records a request.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.operation(operation).executionCount.Add(1)
}

// RecordFailure records a failed request.
func (m *Metrics) RecordFailure(operation string) {
	m.requestFailed.Add(1)
	m.operation(operation).errorCount.Add(1)
}

// RecordDuration records a request duration.
func (m *Metrics) RecordDuration(operation string, duration time.Duration) {
	om := m.operation(operation)
	om.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

// RecordOperation records an internal operation, such as a calendar fetch,
// without counting it as an API request.
func (m *Metrics) RecordOperation(operation string, duration time.Duration, failed bool) {
	om := m.operation(operation)
	om.executionCount.Add(1)
	om.totalDuration.Add(duration.Milliseconds())
	if failed {
		om.errorCount.Add(1)
	}
}

// RecordOutcome counts a scheduling outcome such as "booked" or "rejected:conflict".
func (m *Metrics) RecordOutcome(outcome string) {
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

// RecordFetchFailure counts a busy-interval fetch that failed or timed out.
func (m *Metrics) RecordFetchFailure() {
	m.fetchFailures.Add(1)
}

// RecordFailOpen counts a conflict check that proceeded without busy data.
func (m *Metrics) RecordFailOpen() {
	m.failOpen.Add(1)
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

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.fetchFailures.Store(0)
	m.failOpen.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.outcomes = make(map[string]int64)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]*OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.executionCount.Load()
		var avg int64
		if count > 0 {
			avg = om.totalDuration.Load() / count
		}
		ops[name] = &OperationSnapshot{
			ExecutionCount:  count,
			ErrorCount:      om.errorCount.Load(),
			AverageDuration: avg,
		}
	}

	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}

	sorted := slices.Clone(m.durations)
	slices.Sort(sorted)

	return &MetricsSnapshot{
		RequestTotal:  m.requestTotal.Load(),
		RequestFailed: m.requestFailed.Load(),
		FetchFailures: m.fetchFailures.Load(),
		FailOpen:      m.failOpen.Load(),
		Operations:    ops,
		Outcomes:      outcomes,
		P50:           percentile(sorted, 0.50),
		P95:           percentile(sorted, 0.95),
		Average:       average(sorted),
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal  int64
	RequestFailed int64
	FetchFailures int64
	FailOpen      int64
	Operations    map[string]*OperationSnapshot
	Outcomes      map[string]int64
	P50           time.Duration
	P95           time.Duration
	Average       time.Duration
}

// OperationSnapshot represents metrics for a specific operation.
type OperationSnapshot struct {
	ExecutionCount  int64
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

// percentile expects sorted input (nearest-rank).
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p+0.5) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func average(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}
