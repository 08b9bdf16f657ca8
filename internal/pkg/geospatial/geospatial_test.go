package geospatial

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	// Berlin to Hamburg, roughly 255 km.
	d := Haversine(52.5200, 13.4050, 53.5511, 9.9937)
	if d < 250_000 || d > 260_000 {
		t.Errorf("expected ~255km, got %.0fm", d)
	}
	if Haversine(50, 7, 50, 7) != 0 {
		t.Error("distance to self must be zero")
	}
}

func TestPlanarDistance(t *testing.T) {
	if d := PlanarDistance(0, 0, 3, 4); d != 5 {
		t.Errorf("expected 5, got %v", d)
	}
	if d := PlanarDistanceSquared(0, 0, 3, 4); d != 25 {
		t.Errorf("expected 25, got %v", d)
	}
}

func TestProject_Origin(t *testing.T) {
	x, y := Project(0, 0, 0)
	if x != 128 || math.Abs(y-128) > 1e-9 {
		t.Errorf("expected (128,128), got (%v,%v)", x, y)
	}
	x, _ = Project(-180, 0, 1)
	if x != 0 {
		t.Errorf("expected x=0 at the antimeridian, got %v", x)
	}
}

func TestProject_RoundTrip(t *testing.T) {
	for _, zoom := range []float64{0, 6, 6.5, 14} {
		x, y := Project(10.4515, 51.1657, zoom)
		lon, lat := Unproject(x, y, zoom)
		if math.Abs(lon-10.4515) > 1e-9 || math.Abs(lat-51.1657) > 1e-9 {
			t.Errorf("zoom %v: round trip gave (%v,%v)", zoom, lon, lat)
		}
	}
}

func TestProject_ZoomDoublesScale(t *testing.T) {
	x1, y1 := Project(8, 50, 5)
	x2, y2 := Project(8, 50, 6)
	if math.Abs(x2-2*x1) > 1e-9 || math.Abs(y2-2*y1) > 1e-9 {
		t.Errorf("zoom+1 must double pixel coordinates: (%v,%v) vs (%v,%v)", x1, y1, x2, y2)
	}
}
