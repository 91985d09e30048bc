package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"github.com/movex/dispatch/internal/pkg/models"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// DefaultGeohashPrecision gives cells of roughly 150m, enough to bucket
// driver positions for the directory without leaking exact fixes.
const DefaultGeohashPrecision = 7

// DistanceKm calculates the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(a, b models.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Encode converts a coordinate to its geohash bucket.
func Encode(c models.Coordinate) string {
	return geohash.EncodeWithPrecision(c.Latitude, c.Longitude, DefaultGeohashPrecision)
}

// Decode converts a geohash bucket back to its center coordinate.
func Decode(hash string) models.Coordinate {
	lat, lng := geohash.Decode(hash)
	return models.Coordinate{Latitude: lat, Longitude: lng}
}
