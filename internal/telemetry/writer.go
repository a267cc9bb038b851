package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Writer records business and HTTP metrics in the time-series store.
// Callers fire it from detached goroutines; failures are logged and
// dropped, never propagated to a request.
type Writer struct {
	write  api.WriteAPIBlocking
	query  api.QueryAPI
	bucket string
	logger *slog.Logger
}

func NewWriter(url, token, org, bucket string, logger *slog.Logger) *Writer {
	client := influxdb2.NewClient(url, token)
	return &Writer{
		write:  client.WriteAPIBlocking(org, bucket),
		query:  client.QueryAPI(org),
		bucket: bucket,
		logger: logger,
	}
}

// WriteHTTPMetric records one request's latency and status.
func (w *Writer) WriteHTTPMetric(ctx context.Context, method, endpoint string, status int, duration time.Duration) {
	p := influxdb2.NewPoint("http_requests",
		map[string]string{"method": method, "endpoint": endpoint},
		map[string]any{"response_time_ms": duration.Milliseconds(), "status_code": status},
		time.Now())
	if err := w.write.WritePoint(ctx, p); err != nil {
		w.logger.Warn("http metric write failed", "error", err)
	}
}

// WriteBusinessMetrics records aggregate occupancy derived from a status
// response.
func (w *Writer) WriteBusinessMetrics(ctx context.Context, totalSpots, freeSpots, occupiedSpots int) {
	p := influxdb2.NewPoint("parking_business",
		nil,
		map[string]any{
			"total_spots":    totalSpots,
			"free_spots":     freeSpots,
			"occupied_spots": occupiedSpots,
		},
		time.Now())
	if err := w.write.WritePoint(ctx, p); err != nil {
		w.logger.Warn("business metric write failed", "error", err)
	}
}

// HealthMetrics summarizes recent API traffic as recorded by
// WriteHTTPMetric.
type HealthMetrics struct {
	TotalRequests int     `json:"totalRequests"`
	ErrorRequests int     `json:"errorRequests"`
	ErrorRate     float64 `json:"errorRate"`
	IsHealthy     bool    `json:"isHealthy"`
}

const maxAcceptableErrorRate = 5.0 // percent

// RecentHealth computes request and error counts over the last five
// minutes. No recorded traffic counts as healthy.
func (w *Writer) RecentHealth(ctx context.Context) (HealthMetrics, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
  |> range(start: -5m)
  |> filter(fn: (r) => r._measurement == "http_requests" and r._field == "status_code")`, w.bucket)

	result, err := w.query.Query(ctx, flux)
	if err != nil {
		return HealthMetrics{}, err
	}

	var m HealthMetrics
	for result.Next() {
		m.TotalRequests++
		if code, ok := parseInt(result.Record().Value()); ok && code >= 400 {
			m.ErrorRequests++
		}
	}
	if err := result.Err(); err != nil {
		return HealthMetrics{}, err
	}
	if m.TotalRequests > 0 {
		m.ErrorRate = 100 * float64(m.ErrorRequests) / float64(m.TotalRequests)
	}
	m.IsHealthy = m.ErrorRate <= maxAcceptableErrorRate
	return m, nil
}
