package mapview

import (
	"github.com/google/uuid"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// DefaultExpandZoom is the zoom from which groups render as individual
// markers.
const DefaultExpandZoom = 14

// MarkerKind is the visual style of a marker.
type MarkerKind int

const (
	// TurbineMarker draws one turbine.
	TurbineMarker MarkerKind = iota
	// CountMarker draws a group as a bubble labelled with its size.
	CountMarker
)

// Marker is one drawable item.
type Marker struct {
	Kind      MarkerKind
	Pixel     Pixel
	ClusterID uuid.UUID
	Count     int
	Turbine   *domain.Turbine // TurbineMarker only
	Extent    domain.BoundingBox
}

// RenderPolicy turns clusters into markers. Grouping itself does not depend
// on the policy.
type RenderPolicy struct {
	ExpandZoom float64
}

// Markers returns the markers for clusters at vp. At or above ExpandZoom
// every group member is drawn on its own; below it groups are drawn as
// count markers at their centroid.
func (p RenderPolicy) Markers(clusters []Cluster, vp Viewport) []Marker {
	expand := p.ExpandZoom
	if expand <= 0 {
		expand = DefaultExpandZoom
	}

	out := make([]Marker, 0, len(clusters))
	for _, c := range clusters {
		if c.Kind == Group && vp.Zoom < expand {
			out = append(out, Marker{
				Kind:      CountMarker,
				Pixel:     c.Centroid,
				ClusterID: c.ID,
				Count:     c.Count,
				Extent:    c.Extent,
			})
			continue
		}
		for i := range c.Members {
			t := c.Members[i]
			out = append(out, Marker{
				Kind:      TurbineMarker,
				Pixel:     vp.Project(t.Location()),
				ClusterID: c.ID,
				Count:     1,
				Turbine:   &t,
				Extent:    domain.BoundingBox{MinLon: t.Lon, MinLat: t.Lat, MaxLon: t.Lon, MaxLat: t.Lat},
			})
		}
	}
	return out
}
