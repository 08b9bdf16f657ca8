package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// PlanarDistance is the Euclidean distance between two lon/lat points in
// degrees. It is the distance PostGIS reports for geometries in SRID 4326.
func PlanarDistance(lon1, lat1, lon2, lat2 float64) float64 {
	return planar.Distance(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

// PlanarDistanceSquared avoids the square root for ranking.
func PlanarDistanceSquared(lon1, lat1, lon2, lat2 float64) float64 {
	return planar.DistanceSquared(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
