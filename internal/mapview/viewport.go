// Package mapview is the client-side map engine: it keeps a working set of
// turbines synchronized with the viewport, groups them into screen-space
// clusters, and resolves pointer events into popups or zoom actions.
package mapview

import (
	"fmt"
	"math"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/geospatial"
)

// MaxZoom is the deepest zoom a ZoomTo will ask for.
const MaxZoom = 18

// Pixel is a screen position relative to the viewport's top-left corner.
type Pixel struct {
	X, Y float64
}

// Viewport is the visible map area: centre, fractional zoom, and size in
// pixels.
type Viewport struct {
	Center domain.GeoPoint
	Zoom   float64
	Width  int
	Height int
}

// Validate reports whether the viewport can be projected.
func (v Viewport) Validate() error {
	if !v.Center.IsFinite() || math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) {
		return fmt.Errorf("%w: viewport must be finite", domain.ErrInvalidArgument)
	}
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: viewport size must be positive, got %dx%d", domain.ErrInvalidArgument, v.Width, v.Height)
	}
	if v.Zoom < 0 || v.Zoom > 24 {
		return fmt.Errorf("%w: zoom %.2f outside [0, 24]", domain.ErrInvalidArgument, v.Zoom)
	}
	return nil
}

// origin returns the world pixel at the top-left corner.
func (v Viewport) origin() (float64, float64) {
	cx, cy := geospatial.Project(v.Center.Lon, v.Center.Lat, v.Zoom)
	return cx - float64(v.Width)/2, cy - float64(v.Height)/2
}

// Project returns the screen pixel of p.
func (v Viewport) Project(p domain.GeoPoint) Pixel {
	ox, oy := v.origin()
	x, y := geospatial.Project(p.Lon, p.Lat, v.Zoom)
	return Pixel{X: x - ox, Y: y - oy}
}

// Unproject returns the geographic point under px.
func (v Viewport) Unproject(px Pixel) domain.GeoPoint {
	ox, oy := v.origin()
	lon, lat := geospatial.Unproject(ox+px.X, oy+px.Y, v.Zoom)
	return domain.GeoPoint{Lon: lon, Lat: lat}
}

// Bounds returns the geographic box covered by the viewport. Longitudes
// are clamped to [-180, 180]; the box never wraps the antimeridian.
func (v Viewport) Bounds() domain.BoundingBox {
	nw := v.Unproject(Pixel{X: 0, Y: 0})
	se := v.Unproject(Pixel{X: float64(v.Width), Y: float64(v.Height)})
	return domain.BoundingBox{
		MinLon: clamp(nw.Lon, -180, 180),
		MinLat: clamp(se.Lat, -90, 90),
		MaxLon: clamp(se.Lon, -180, 180),
		MaxLat: clamp(nw.Lat, -90, 90),
	}.Normalize()
}

// Fit returns a viewport of the same size centred on box at the deepest
// zoom that shows all of it, capped at maxZoom. A zero-area box gets
// maxZoom.
func (v Viewport) Fit(box domain.BoundingBox, maxZoom float64) Viewport {
	box = box.Normalize()
	x0, y0 := geospatial.Project(box.MinLon, box.MaxLat, 0)
	x1, y1 := geospatial.Project(box.MaxLon, box.MinLat, 0)
	dx, dy := x1-x0, y1-y0

	zoom := maxZoom
	// leave a margin so edge markers are not cut off
	const pad = 0.9
	if dx > 0 {
		zoom = math.Min(zoom, math.Log2(pad*float64(v.Width)/dx))
	}
	if dy > 0 {
		zoom = math.Min(zoom, math.Log2(pad*float64(v.Height)/dy))
	}
	zoom = clamp(zoom, 0, maxZoom)

	cx, cy := (x0+x1)/2, (y0+y1)/2
	lon, lat := geospatial.Unproject(cx, cy, 0)
	return Viewport{
		Center: domain.GeoPoint{Lon: lon, Lat: lat},
		Zoom:   zoom,
		Width:  v.Width,
		Height: v.Height,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
