package v1

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse represents the overview response of system metrics.
type MetricsOverviewResponse struct {
	TotalRequests int64            `json:"total_requests"`
	SuccessRate   float64          `json:"success_rate"`
	AvgLatencyMs  int64            `json:"avg_latency_ms"`
	P50LatencyMs  int64            `json:"p50_latency_ms"`
	P95LatencyMs  int64            `json:"p95_latency_ms"`
	ErrorCount    int64            `json:"error_count"`
	FetchFailures int64            `json:"fetch_failures"`
	FailOpen      int64            `json:"fail_open"`
	Outcomes      map[string]int64 `json:"outcomes"`
	Operations    []OperationStats `json:"operations"`
}

// OperationStats summarizes one route or internal operation.
type OperationStats struct {
	Name         string `json:"name"`
	Count        int64  `json:"count"`
	Errors       int64  `json:"errors"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
}

// GetMetricsOverview returns the metrics collected since the process started.
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snap := s.Metrics.Snapshot()
	resp := MetricsOverviewResponse{
		TotalRequests: snap.RequestTotal,
		SuccessRate:   snap.SuccessRate(),
		AvgLatencyMs:  snap.Average.Milliseconds(),
		P50LatencyMs:  snap.P50.Milliseconds(),
		P95LatencyMs:  snap.P95.Milliseconds(),
		ErrorCount:    snap.RequestFailed,
		FetchFailures: snap.FetchFailures,
		FailOpen:      snap.FailOpen,
		Outcomes:      snap.Outcomes,
		Operations:    make([]OperationStats, 0, len(snap.Operations)),
	}
	for name, op := range snap.Operations {
		resp.Operations = append(resp.Operations, OperationStats{
			Name:         name,
			Count:        op.ExecutionCount,
			Errors:       op.ErrorCount,
			AvgLatencyMs: op.AverageDuration,
		})
	}
	slices.SortFunc(resp.Operations, func(a, b OperationStats) int {
		return strings.Compare(a.Name, b.Name)
	})
	return c.JSON(http.StatusOK, resp)
}
