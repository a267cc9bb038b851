package cache

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// KeyStatus caches the unfiltered aggregate; invalidated on every
	// booking mutation together with KeyStatusGeoPrefix. The bare key does
	// not share the geo prefix, so both invalidations are always issued.
	KeyStatus          = "parking:status"
	KeyStatusGeoPrefix = "parking:status:geo:"

	// KeySpotPrefix is the namespace for per-spot detail entries.
	KeySpotPrefix = "parking:spot:"
)

// StatusGeoKey builds the cache key for a geo-filtered status query.
// Coordinates are quantized to 4 decimal places (~11m) and the radius to
// whole meters so near-identical queries share one entry.
func StatusGeoKey(lat, lon, radius float64) string {
	return fmt.Sprintf("%s%.4f:%.4f:%d", KeyStatusGeoPrefix, lat, lon, int(math.Round(radius)))
}

// LotKey caches a lot's geometry (near-static, long TTL).
func LotKey(lotID int) string {
	return "parking:location:" + strconv.Itoa(lotID)
}

// RouteKey caches the route stub for a lot.
func RouteKey(lotID int) string {
	return "parking:route:" + strconv.Itoa(lotID)
}

// SpotKey caches spot detail for one (lot, spot) pair.
func SpotKey(lotID, spotNumber int) string {
	return KeySpotPrefix + strconv.Itoa(lotID) + ":" + strconv.Itoa(spotNumber)
}
