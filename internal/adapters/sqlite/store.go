// Package sqlite serves the turbine dataset from a read-only SQLite file,
// for offline runs without PostGIS.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/geospatial"
)

// DefaultTable matches the PostGIS table name.
const DefaultTable = "german_wind_power"

// initial half-width of the nearest-neighbour search window, in degrees.
const nearestWindow = 0.05

// Schema returns the DDL for a dataset file holding table.
func Schema(table string) string {
	t := quote(table)
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
    id            INTEGER PRIMARY KEY,
    location_name TEXT,
    capacity_mw   REAL,
    lon           REAL NOT NULL,
    lat           REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (lon, lat);
`, t, quote(table+"_lon_lat_idx"))
}

// Store implements ports.TurbineRepository over a SQLite dataset file.
type Store struct {
	db    *sql.DB
	table string
}

// Open opens path read-only. The file must already hold the dataset table.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	s := &Store{db: db, table: quote(table)}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table+" LIMIT 1").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite dataset %s: %w", path, err)
	}
	return s, nil
}

// ContainedIn returns turbines inside box, edges included, lowest ids first.
func (s *Store) ContainedIn(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(location_name, ''), COALESCE(capacity_mw, 0), lon, lat
		FROM `+s.table+`
		WHERE lon BETWEEN ? AND ? AND lat BETWEEN ? AND ?
		ORDER BY id
		LIMIT ?`,
		box.MinLon, box.MaxLon, box.MinLat, box.MaxLat, limit)
	if err != nil {
		return nil, fmt.Errorf("query bbox: %w", err)
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

// NearestTo searches a square window around p that doubles until it holds
// k turbines within its inscribed radius, so the (lon, lat) index is used
// and the answer stays exact. Past the whole world it scans the table.
func (s *Store) NearestTo(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	for r := nearestWindow; r <= 360; r *= 2 {
		box := domain.BoundingBox{MinLon: p.Lon - r, MinLat: p.Lat - r, MaxLon: p.Lon + r, MaxLat: p.Lat + r}
		cands, err := s.scan(ctx, `WHERE lon BETWEEN ? AND ? AND lat BETWEEN ? AND ?`,
			box.MinLon, box.MaxLon, box.MinLat, box.MaxLat)
		if err != nil {
			return nil, err
		}
		ranked := rank(cands, p)
		inside := 0
		for _, n := range ranked {
			if n.Distance <= r {
				inside++
			}
		}
		if inside >= k {
			return ranked[:k], nil
		}
	}

	all, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	ranked := rank(all, p)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func (s *Store) scan(ctx context.Context, where string, args ...any) ([]domain.Turbine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(location_name, ''), COALESCE(capacity_mw, 0), lon, lat
		FROM `+s.table+` `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query nearest: %w", err)
	}
	defer rows.Close()

	var out []domain.Turbine
	for rows.Next() {
		var t domain.Turbine
		if err := rows.Scan(&t.ID, &t.LocationName, &t.CapacityMW, &t.Lon, &t.Lat); err != nil {
			return nil, fmt.Errorf("scan turbine: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func rank(in []domain.Turbine, p domain.GeoPoint) []domain.NearbyTurbine {
	out := make([]domain.NearbyTurbine, len(in))
	for i, t := range in {
		out[i] = domain.NearbyTurbine{
			Turbine:  t,
			Distance: geospatial.PlanarDistance(p.Lon, p.Lat, t.Lon, t.Lat),
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats summarises the dataset.
func (s *Store) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	var (
		st             domain.DatasetStats
		minLon, minLat sql.NullFloat64
		maxLon, maxLat sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(capacity_mw), 0), MIN(lon), MIN(lat), MAX(lon), MAX(lat)
		FROM `+s.table).Scan(&st.Count, &st.TotalCapacityMW, &minLon, &minLat, &maxLon, &maxLat)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st.Extent = domain.BoundingBox{
		MinLon: minLon.Float64, MinLat: minLat.Float64,
		MaxLon: maxLon.Float64, MaxLat: maxLat.Float64,
	}
	return &st, nil
}

// Ping checks the file is still readable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
