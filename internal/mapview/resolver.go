package mapview

import (
	"context"
	"fmt"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/geospatial"
)

const (
	// DefaultHitRadius is how far from a marker, in pixels, a click still
	// selects it.
	DefaultHitRadius = 12
	// NearestCount is how many turbines a secondary click asks for.
	NearestCount = 3
)

// Popup describes one turbine for display.
type Popup struct {
	Turbine           domain.Turbine
	HouseholdsPowered int64
	// Set only for secondary-click results.
	Distance   *float64 // degrees, planar
	DistanceKM *float64 // great-circle, approximate
}

// Text renders the popup as the map shows it.
func (p Popup) Text() string {
	name := p.Turbine.LocationName
	if name == "" {
		name = fmt.Sprintf("Turbine %d", p.Turbine.ID)
	}
	s := fmt.Sprintf("%s\nCapacity: %.2f MW\nPowers about %d households",
		name, p.Turbine.CapacityMW, p.HouseholdsPowered)
	if p.DistanceKM != nil {
		s += fmt.Sprintf("\nDistance: %.2f km", *p.DistanceKM)
	}
	return s
}

func newPopup(t domain.Turbine) *Popup {
	return &Popup{Turbine: t, HouseholdsPowered: t.HouseholdsPowered()}
}

// ZoomTo asks the host to show Extent; Viewport is the suggested result.
type ZoomTo struct {
	Extent   domain.BoundingBox
	Viewport Viewport
}

// Resolver maps pointer events to popups and zoom actions.
type Resolver struct {
	client    Querier
	HitRadius float64
	MaxZoom   float64
}

// NewResolver creates a Resolver. hitRadius <= 0 means DefaultHitRadius.
func NewResolver(client Querier, hitRadius float64) *Resolver {
	if hitRadius <= 0 {
		hitRadius = DefaultHitRadius
	}
	return &Resolver{client: client, HitRadius: hitRadius, MaxZoom: MaxZoom}
}

// Click hit-tests markers at px and returns a popup for a turbine marker or
// a zoom-to-fit for a count marker. Both are nil when nothing was hit.
// Popup data comes from ws, not from the marker.
func (r *Resolver) Click(ws *WorkingSet, markers []Marker, vp Viewport, px Pixel) (*Popup, *ZoomTo) {
	m, ok := r.hit(markers, px)
	if !ok {
		return nil, nil
	}
	if m.Kind == CountMarker {
		return nil, &ZoomTo{Extent: m.Extent, Viewport: vp.Fit(m.Extent, r.MaxZoom)}
	}
	t, ok := ws.Get(m.Turbine.ID)
	if !ok {
		return nil, nil
	}
	return newPopup(t), nil
}

// hit returns the marker nearest to px within HitRadius. Ties go to the
// earlier marker.
func (r *Resolver) hit(markers []Marker, px Pixel) (Marker, bool) {
	best := -1
	bestD := r.HitRadius * r.HitRadius
	for i, m := range markers {
		dx, dy := m.Pixel.X-px.X, m.Pixel.Y-px.Y
		if d := dx*dx + dy*dy; d <= bestD && (best < 0 || d < bestD) {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return Marker{}, false
	}
	return markers[best], true
}

// SecondaryClick queries the turbines nearest to the point under px,
// independent of the working set, and returns a popup for the closest one.
// It returns nil when the dataset is empty.
func (r *Resolver) SecondaryClick(ctx context.Context, vp Viewport, px Pixel) (*Popup, error) {
	p := vp.Unproject(px)
	nearby, err := r.client.Nearest(ctx, p, NearestCount)
	if err != nil {
		return nil, fmt.Errorf("nearest to %.5f,%.5f: %w", p.Lon, p.Lat, err)
	}
	if len(nearby) == 0 {
		return nil, nil
	}

	first := nearby[0]
	popup := newPopup(first.Turbine)
	deg := first.Distance
	km := geospatial.Haversine(p.Lat, p.Lon, first.Lat, first.Lon) / 1000
	popup.Distance = &deg
	popup.DistanceKM = &km
	return popup, nil
}
