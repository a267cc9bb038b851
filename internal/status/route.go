package status

import (
	"context"
	"errors"

	"github.com/example/parking-api/internal/cache"
	"github.com/example/parking-api/internal/storage"
)

// RoutePoint is one vertex of the stub approach route.
type RoutePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteInfo is the GET /parking/{lotId}/route payload: the lot's position
// plus a short synthetic approach path. There is no routing engine behind
// this; clients use the points to orient the map.
type RouteInfo struct {
	ID     int          `json:"id"`
	Lat    float64      `json:"lat"`
	Lon    float64      `json:"lon"`
	Points []RoutePoint `json:"points"`
}

// Route resolves a lot's route info through the cache with the long TTL.
// Unknown lots return storage.ErrNotFound and are never cached.
func (a *Aggregator) Route(ctx context.Context, lotID int) (*RouteInfo, error) {
	var info RouteInfo
	err := a.Cache.GetOrCreate(ctx, cache.RouteKey(lotID), &info, a.LotTTL,
		func(ctx context.Context) (any, error) {
			lat, lon, err := a.Lots.GetLocation(ctx, lotID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, cache.Skip(err)
			}
			if err != nil {
				return nil, err
			}
			return &RouteInfo{
				ID:  lotID,
				Lat: lat,
				Lon: lon,
				Points: []RoutePoint{
					{Lat: lat - 0.001, Lon: lon - 0.001},
					{Lat: lat - 0.0005, Lon: lon - 0.0002},
					{Lat: lat, Lon: lon},
				},
			}, nil
		})
	if err != nil {
		return nil, err
	}
	return &info, nil
}
