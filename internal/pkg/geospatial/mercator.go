package geospatial

import "math"

// TileSize is the edge length of one Web-Mercator tile in pixels.
const TileSize = 256

// MaxLatitude is the latitude where the Web-Mercator square ends.
const MaxLatitude = 85.05112878

// WorldSize returns the width of the whole world in pixels at zoom.
// Fractional zoom levels are allowed.
func WorldSize(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

// Project converts lon/lat to absolute world pixel coordinates at zoom.
// y grows southwards.
func Project(lon, lat, zoom float64) (x, y float64) {
	lat = clampLat(lat)
	size := WorldSize(zoom)
	x = (lon + 180) / 360 * size
	sin := math.Sin(toRad(lat))
	y = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * size
	return x, y
}

// Unproject converts absolute world pixel coordinates back to lon/lat.
func Unproject(x, y, zoom float64) (lon, lat float64) {
	size := WorldSize(zoom)
	lon = x/size*360 - 180
	n := math.Pi - 2*math.Pi*y/size
	lat = 180 / math.Pi * math.Atan(math.Sinh(n))
	return lon, lat
}

func clampLat(lat float64) float64 {
	switch {
	case lat > MaxLatitude:
		return MaxLatitude
	case lat < -MaxLatitude:
		return -MaxLatitude
	}
	return lat
}
