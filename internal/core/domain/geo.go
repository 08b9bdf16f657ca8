package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// SRID is the spatial reference id for every stored coordinate, every
// containment filter and every distance computation (WGS 84 lon/lat).
const SRID = 4326

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
}

// IsFinite reports whether neither coordinate is NaN or infinite.
func (p GeoPoint) IsFinite() bool {
	return finite(p.Lon) && finite(p.Lat)
}

// Orb returns the point as an orb.Point (x = lon, y = lat).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// BoundingBox represents a geographic bounding box in SRID 4326.
type BoundingBox struct {
	MinLon float64 `json:"min_lon" validate:"min=-180,max=180"`
	MinLat float64 `json:"min_lat" validate:"min=-90,max=90"`
	MaxLon float64 `json:"max_lon" validate:"min=-180,max=180"`
	MaxLat float64 `json:"max_lat" validate:"min=-90,max=90"`
}

// Normalize returns the box with reversed corners swapped so that
// MinLon <= MaxLon and MinLat <= MaxLat.
func (b BoundingBox) Normalize() BoundingBox {
	if b.MinLon > b.MaxLon {
		b.MinLon, b.MaxLon = b.MaxLon, b.MinLon
	}
	if b.MinLat > b.MaxLat {
		b.MinLat, b.MaxLat = b.MaxLat, b.MinLat
	}
	return b
}

// IsFinite reports whether all four coordinates are finite.
func (b BoundingBox) IsFinite() bool {
	return finite(b.MinLon) && finite(b.MinLat) && finite(b.MaxLon) && finite(b.MaxLat)
}

// IsDegenerate reports whether the box has zero area.
func (b BoundingBox) IsDegenerate() bool {
	return b.MinLon == b.MaxLon || b.MinLat == b.MaxLat
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(p GeoPoint) bool {
	return b.Bound().Contains(p.Orb())
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() GeoPoint {
	c := b.Bound().Center()
	return GeoPoint{Lon: c[0], Lat: c[1]}
}

// String renders the box the way it appears in cache keys and logs.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// BoundFromOrb converts an orb.Bound back into a BoundingBox.
func BoundFromOrb(b orb.Bound) BoundingBox {
	return BoundingBox{MinLon: b.Min[0], MinLat: b.Min[1], MaxLon: b.Max[0], MaxLat: b.Max[1]}
}

// ParseBoundingBox parses the four decimal strings of a bbox request.
// Any value that is not a finite decimal yields ErrInvalidArgument.
// Range checks happen later, in the service.
func ParseBoundingBox(minLon, minLat, maxLon, maxLat string) (BoundingBox, error) {
	var (
		b    BoundingBox
		errs []string
	)
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"minLon", minLon, &b.MinLon},
		{"minLat", minLat, &b.MinLat},
		{"maxLon", maxLon, &b.MaxLon},
		{"maxLat", maxLat, &b.MaxLat},
	}
	for _, f := range fields {
		v, err := parseCoordinate(f.raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s %v", f.name, err))
			continue
		}
		*f.dst = v
	}
	if len(errs) > 0 {
		return BoundingBox{}, fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(errs, "; "))
	}
	return b, nil
}

// ParseGeoPoint parses a lon/lat pair of decimal strings.
func ParseGeoPoint(lon, lat string) (GeoPoint, error) {
	var errs []string
	x, err := parseCoordinate(lon)
	if err != nil {
		errs = append(errs, "lon "+err.Error())
	}
	y, err := parseCoordinate(lat)
	if err != nil {
		errs = append(errs, "lat "+err.Error())
	}
	if len(errs) > 0 {
		return GeoPoint{}, fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(errs, "; "))
	}
	return GeoPoint{Lon: x, Lat: y}, nil
}

func parseCoordinate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a decimal number, got %q", raw)
	}
	if !finite(v) {
		return 0, fmt.Errorf("must be finite, got %q", raw)
	}
	return v, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
