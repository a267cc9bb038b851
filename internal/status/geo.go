package status

import "math"

// metersPerDegree converts degree offsets to meters at mid latitudes.
const metersPerDegree = 111000.0

// distanceMeters is an equirectangular approximation: flat-earth, valid
// for city-scale radii at mid latitudes, not for polar regions or radii
// beyond tens of kilometers.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := lat1 - lat2
	dLon := lon1 - lon2
	return math.Sqrt(dLat*dLat+dLon*dLon) * metersPerDegree
}
