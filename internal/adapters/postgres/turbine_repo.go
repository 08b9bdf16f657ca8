package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// DefaultTable is the dataset table the importer creates.
const DefaultTable = "german_wind_power"

// TurbineRepo implements ports.TurbineRepository on a PostGIS table with
// columns id, location_name, capacity_mw and geom (Point, SRID 4326).
type TurbineRepo struct {
	db    *DB
	table string // quoted identifier

	bboxSQL    string
	nearestSQL string
	statsSQL   string
}

// NewTurbineRepo creates a new TurbineRepo reading from table.
func NewTurbineRepo(db *DB, table string) *TurbineRepo {
	if table == "" {
		table = DefaultTable
	}
	ident := pgx.Identifier{table}.Sanitize()
	return &TurbineRepo{
		db:    db,
		table: ident,
		bboxSQL: fmt.Sprintf(`
			SELECT id, COALESCE(location_name, ''), COALESCE(capacity_mw, 0),
			       ST_X(geom) AS lon, ST_Y(geom) AS lat
			FROM %s
			WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, $5)
			  AND ST_X(geom) BETWEEN $1 AND $3
			  AND ST_Y(geom) BETWEEN $2 AND $4
			ORDER BY id
			LIMIT $6
		`, ident),
		nearestSQL: fmt.Sprintf(`
			SELECT id, COALESCE(location_name, ''), COALESCE(capacity_mw, 0),
			       ST_X(geom) AS lon, ST_Y(geom) AS lat,
			       ST_Distance(geom, ST_SetSRID(ST_MakePoint($1, $2), $3)) AS distance
			FROM %s
			ORDER BY geom <-> ST_SetSRID(ST_MakePoint($1, $2), $3), id
			LIMIT $4
		`, ident),
		statsSQL: fmt.Sprintf(`
			SELECT COUNT(*), COALESCE(SUM(capacity_mw), 0),
			       COALESCE(ST_XMin(ST_Extent(geom)), 0), COALESCE(ST_YMin(ST_Extent(geom)), 0),
			       COALESCE(ST_XMax(ST_Extent(geom)), 0), COALESCE(ST_YMax(ST_Extent(geom)), 0)
			FROM %s
		`, ident),
	}
}

// ContainedIn returns turbines whose point lies inside box, edges included.
// The && filter uses the GiST index; its float4 boxes are coarse, so the
// coordinate comparison keeps the result exact.
func (r *TurbineRepo) ContainedIn(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	rows, err := r.db.Pool.Query(ctx, r.bboxSQL,
		box.MinLon, box.MinLat, box.MaxLon, box.MaxLat, domain.SRID, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s by bbox: %w", r.table, err)
	}
	defer rows.Close()

	turbines := make([]domain.Turbine, 0, 64)
	for rows.Next() {
		var t domain.Turbine
		if err := rows.Scan(&t.ID, &t.LocationName, &t.CapacityMW, &t.Lon, &t.Lat); err != nil {
			return nil, fmt.Errorf("scan turbine: %w", err)
		}
		turbines = append(turbines, t)
	}
	return turbines, rows.Err()
}

// NearestTo returns the k turbines closest to p using the GiST KNN operator.
func (r *TurbineRepo) NearestTo(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	rows, err := r.db.Pool.Query(ctx, r.nearestSQL, p.Lon, p.Lat, domain.SRID, k)
	if err != nil {
		return nil, fmt.Errorf("query %s nearest: %w", r.table, err)
	}
	defer rows.Close()

	out := make([]domain.NearbyTurbine, 0, k)
	for rows.Next() {
		var n domain.NearbyTurbine
		if err := rows.Scan(&n.ID, &n.LocationName, &n.CapacityMW, &n.Lon, &n.Lat, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan nearby turbine: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Stats summarises the whole table.
func (r *TurbineRepo) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	var s domain.DatasetStats
	err := r.db.Pool.QueryRow(ctx, r.statsSQL).Scan(
		&s.Count, &s.TotalCapacityMW,
		&s.Extent.MinLon, &s.Extent.MinLat, &s.Extent.MaxLon, &s.Extent.MaxLat,
	)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", r.table, err)
	}
	return &s, nil
}

// Ping checks the pool.
func (r *TurbineRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
