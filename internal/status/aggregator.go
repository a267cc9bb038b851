package status

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/example/parking-api/internal/cache"
	"github.com/example/parking-api/internal/models"
	"github.com/example/parking-api/internal/observability"
	"github.com/example/parking-api/internal/storage"
)

// TelemetrySource yields the latest free-spot count per device. An empty
// map with nil error means no recent telemetry.
type TelemetrySource interface {
	LatestFreeSpots(ctx context.Context) (map[int]int, error)
}

// MetricsSink receives aggregate occupancy numbers. Implementations must
// be safe to call from detached goroutines.
type MetricsSink interface {
	WriteBusinessMetrics(ctx context.Context, totalSpots, freeSpots, occupiedSpots int)
}

// GeoFilter restricts a status query to lots within Radius meters of the
// center. All three parameters must be supplied together.
type GeoFilter struct {
	Lat    float64
	Lon    float64
	Radius float64
}

// Aggregator merges telemetry with lot geometry into the status view. Lot
// geometry flows through the cache with the long TTL; whole responses are
// cached under the base or geo-quantized key with the short status TTL.
type Aggregator struct {
	Telemetry TelemetrySource
	Lots      storage.LotStore
	Cache     cache.Cache
	Metrics   MetricsSink
	Logger    *slog.Logger

	StatusTTL time.Duration
	LotTTL    time.Duration
}

// GetStatus returns the availability list, optionally geo-filtered. An
// empty list is a legitimate result and is cached like any other.
func (a *Aggregator) GetStatus(ctx context.Context, filter *GeoFilter) ([]models.ParkingStatus, error) {
	key := cache.KeyStatus
	if filter != nil {
		key = cache.StatusGeoKey(filter.Lat, filter.Lon, filter.Radius)
	}

	out := []models.ParkingStatus{}
	err := a.Cache.GetOrCreate(ctx, key, &out, a.StatusTTL, func(ctx context.Context) (any, error) {
		list, err := a.build(ctx, filter)
		if err != nil {
			return nil, err
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) build(ctx context.Context, filter *GeoFilter) ([]models.ParkingStatus, error) {
	// A nil source means no telemetry backend is configured; the
	// relational fallback serves everything.
	var readings map[int]int
	if a.Telemetry != nil {
		var err error
		readings, err = a.Telemetry.LatestFreeSpots(ctx)
		if err != nil {
			a.Logger.Warn("telemetry unavailable, using relational fallback", "error", err)
			readings = nil
		}
	}

	var list []models.ParkingStatus
	if len(readings) > 0 {
		list = a.fromTelemetry(ctx, readings)
	}
	if len(list) == 0 {
		fallback, err := a.fromCapacity(ctx)
		if err != nil {
			return nil, err
		}
		list = fallback
	}

	if filter != nil {
		filtered := list[:0]
		for _, s := range list {
			if distanceMeters(s.Lat, s.Lon, filter.Lat, filter.Lon) <= filter.Radius {
				filtered = append(filtered, s)
			}
		}
		list = filtered
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	a.emitMetrics(list)
	if list == nil {
		list = []models.ParkingStatus{}
	}
	return list, nil
}

// fromTelemetry resolves each device's lot geometry through the cache.
// Readings whose device has no matching lot are dropped and logged, never
// failing the whole request.
func (a *Aggregator) fromTelemetry(ctx context.Context, readings map[int]int) []models.ParkingStatus {
	out := make([]models.ParkingStatus, 0, len(readings))
	for deviceID, freeSpots := range readings {
		lot, err := a.lotGeometry(ctx, deviceID)
		if errors.Is(err, storage.ErrNotFound) {
			a.Logger.Warn("no lot metadata for device", "device_id", deviceID)
			continue
		}
		if err != nil {
			a.Logger.Warn("lot lookup failed for device", "device_id", deviceID, "error", err)
			continue
		}
		out = append(out, models.ParkingStatus{
			ID:        deviceID,
			FreeSpots: freeSpots,
			Lat:       lot.Lat,
			Lon:       lot.Lon,
		})
	}
	return out
}

// fromCapacity derives an approximate count from static capacity when both
// telemetry windows came back empty: half the capacity, rounded down.
func (a *Aggregator) fromCapacity(ctx context.Context) ([]models.ParkingStatus, error) {
	observability.TelemetryFallbacks.Inc()
	lots, err := a.Lots.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ParkingStatus, 0, len(lots))
	for _, lot := range lots {
		out = append(out, models.ParkingStatus{
			ID:        lot.ID,
			FreeSpots: lot.Capacity / 2,
			Lat:       lot.Lat,
			Lon:       lot.Lon,
		})
	}
	return out, nil
}

func (a *Aggregator) lotGeometry(ctx context.Context, lotID int) (*models.ParkingLot, error) {
	var lot models.ParkingLot
	err := a.Cache.GetOrCreate(ctx, cache.LotKey(lotID), &lot, a.LotTTL,
		func(ctx context.Context) (any, error) {
			l, err := a.Lots.GetLot(ctx, lotID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, cache.Skip(err)
			}
			if err != nil {
				return nil, err
			}
			return l, nil
		})
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// emitMetrics is fire-and-forget: the write runs on a detached goroutine
// with its own deadline and must never delay or fail the read path.
func (a *Aggregator) emitMetrics(list []models.ParkingStatus) {
	if a.Metrics == nil {
		return
	}
	free := 0
	for _, s := range list {
		free += s.FreeSpots
	}
	// Without per-lot capacity in the view, assume 10 spots per lot for
	// the aggregate, matching what the occupancy dashboards expect.
	total := len(list) * 10
	occupied := total - free
	if occupied < 0 {
		occupied = 0
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Metrics.WriteBusinessMetrics(ctx, total, free, occupied)
	}()
}
