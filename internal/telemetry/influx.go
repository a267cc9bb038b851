package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
)

// Reader pulls the latest free-spot count per device from the time-series
// store. Devices publish under the parking_data measurement tagged with
// device_id.
type Reader struct {
	query  api.QueryAPI
	bucket string
	logger *slog.Logger

	// One bounded retry with a fixed delay on transient query failures.
	// The containerized store occasionally drops the first query after a
	// restart; a single retry covers that without hiding real outages.
	retryDelay time.Duration
}

func NewReader(url, token, org, bucket string, logger *slog.Logger) *Reader {
	client := influxdb2.NewClient(url, token)
	return &Reader{
		query:      client.QueryAPI(org),
		bucket:     bucket,
		logger:     logger,
		retryDelay: time.Second,
	}
}

// LatestFreeSpots returns device id -> free spots from the most recent
// reading per device within the last hour, widening to 24 hours when the
// short window is empty. An empty map with nil error means "no telemetry";
// callers fall back to relational data.
func (r *Reader) LatestFreeSpots(ctx context.Context) (map[int]int, error) {
	out, err := r.queryWindow(ctx, "-1h")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return r.queryWindow(ctx, "-24h")
	}
	return out, nil
}

func (r *Reader) queryWindow(ctx context.Context, start string) (map[int]int, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == "parking_data")
  |> last()`, r.bucket, start)

	result, err := r.query.Query(ctx, flux)
	if err != nil {
		if !isTransient(err) {
			return nil, fmt.Errorf("telemetry query (%s): %w", start, err)
		}
		r.logger.Warn("telemetry query failed, retrying once", "window", start, "error", err)
		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		result, err = r.query.Query(ctx, flux)
		if err != nil {
			return nil, fmt.Errorf("telemetry query (%s): %w", start, err)
		}
	}

	out := make(map[int]int)
	for result.Next() {
		rec := result.Record()
		deviceID, ok := parseInt(rec.ValueByKey("device_id"))
		if !ok {
			r.logger.Warn("skipping reading with invalid device_id", "value", rec.ValueByKey("device_id"))
			continue
		}
		freeSpots, ok := parseInt(rec.Value())
		if !ok {
			r.logger.Warn("skipping reading with invalid free_spots", "device_id", deviceID)
			continue
		}
		out[deviceID] = freeSpots
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("telemetry result (%s): %w", start, err)
	}
	return out, nil
}

// isTransient reports whether a query failure is worth the one retry:
// the gateway-class statuses the store returns while restarting. Auth
// errors, bad Flux and the like surface immediately.
func isTransient(err error) bool {
	var herr *influxhttp.Error
	if !errors.As(err, &herr) {
		return false
	}
	switch herr.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func parseInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
