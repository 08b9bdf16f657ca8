package ports

import (
	"context"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// TurbineRepository is the read-only spatial store behind the query service.
// Implementations must never return the same id twice within one call and
// must use domain.SRID for both filtering and distance.
type TurbineRepository interface {
	// ContainedIn returns at most limit turbines inside box, edges included.
	ContainedIn(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error)
	// NearestTo returns at most k turbines by ascending distance to p.
	NearestTo(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error)
	Stats(ctx context.Context) (*domain.DatasetStats, error)
	Ping(ctx context.Context) error
}
