// Package memory keeps the whole turbine dataset in an R-tree. It backs local
// runs from a CSV export and the HTTP tests.
package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dhconnelly/rtreego"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/geospatial"
)

// eps pads each point into a rectangle the tree can hold. Every lookup is
// widened by the same amount and filtered exactly afterwards.
const eps = 1e-9

type entry struct {
	domain.Turbine
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect { return e.rect }

// Store implements ports.TurbineRepository in memory. It is immutable after
// construction and safe for concurrent use.
type Store struct {
	tree  *rtreego.Rtree
	stats domain.DatasetStats
}

// New indexes turbines. Later duplicates of an id replace earlier ones.
func New(turbines []domain.Turbine) *Store {
	byID := make(map[int64]domain.Turbine, len(turbines))
	for _, t := range turbines {
		byID[t.ID] = t
	}

	objs := make([]rtreego.Spatial, 0, len(byID))
	var stats domain.DatasetStats
	first := true
	for _, t := range byID {
		objs = append(objs, &entry{Turbine: t, rect: rtreego.Point{t.Lon, t.Lat}.ToRect(eps)})

		stats.Count++
		stats.TotalCapacityMW += t.CapacityMW
		if first {
			stats.Extent = domain.BoundingBox{MinLon: t.Lon, MinLat: t.Lat, MaxLon: t.Lon, MaxLat: t.Lat}
			first = false
			continue
		}
		stats.Extent = domain.BoundFromOrb(stats.Extent.Bound().Extend(t.Location().Orb()))
	}

	return &Store{tree: rtreego.NewTree(2, 25, 50, objs...), stats: stats}
}

// Load reads a CSV export with the columns id, location_name, capacity_mw,
// lon and lat (header required, any order).
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	turbines, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return New(turbines), nil
}

// ReadCSV parses turbine rows. Rows with a bad id or coordinate are skipped
// and counted in the log; a missing column is an error.
func ReadCSV(r io.Reader) ([]domain.Turbine, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	for _, name := range []string{"id", "lon", "lat"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var (
		out     []domain.Turbine
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		id, err := strconv.ParseInt(getField(record, cols, "id"), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		p, err := domain.ParseGeoPoint(getField(record, cols, "lon"), getField(record, cols, "lat"))
		if err != nil {
			skipped++
			continue
		}
		capacity, _ := strconv.ParseFloat(getField(record, cols, "capacity_mw"), 64)

		out = append(out, domain.Turbine{
			ID:           id,
			LocationName: getField(record, cols, "location_name"),
			CapacityMW:   capacity,
			Lon:          p.Lon,
			Lat:          p.Lat,
		})
	}

	if skipped > 0 {
		slog.Warn("skipped malformed dataset rows", "skipped", skipped, "loaded", len(out))
	}
	return out, nil
}

// ContainedIn returns turbines inside box, edges included, lowest ids first.
func (s *Store) ContainedIn(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	search, err := rtreego.NewRectFromPoints(
		rtreego.Point{box.MinLon - eps, box.MinLat - eps},
		rtreego.Point{box.MaxLon + eps, box.MaxLat + eps},
	)
	if err != nil {
		return nil, fmt.Errorf("search rect: %w", err)
	}

	hits := s.tree.SearchIntersect(search)
	out := make([]domain.Turbine, 0, len(hits))
	for _, h := range hits {
		e := h.(*entry)
		if box.Contains(e.Location()) {
			out = append(out, e.Turbine)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// NearestTo takes the tree's k nearest as a bound on the k-th distance,
// then ranks every turbine inside that radius exactly.
func (s *Store) NearestTo(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 || s.stats.Count == 0 {
		return []domain.NearbyTurbine{}, nil
	}

	var radius float64
	for _, h := range s.tree.NearestNeighbors(k, rtreego.Point{p.Lon, p.Lat}) {
		if h == nil {
			continue
		}
		e := h.(*entry)
		if d := geospatial.PlanarDistance(p.Lon, p.Lat, e.Lon, e.Lat); d > radius {
			radius = d
		}
	}

	window := radius + 2*eps
	search, err := rtreego.NewRectFromPoints(
		rtreego.Point{p.Lon - window, p.Lat - window},
		rtreego.Point{p.Lon + window, p.Lat + window},
	)
	if err != nil {
		return nil, fmt.Errorf("search rect: %w", err)
	}

	var out []domain.NearbyTurbine
	for _, h := range s.tree.SearchIntersect(search) {
		e := h.(*entry)
		out = append(out, domain.NearbyTurbine{
			Turbine:  e.Turbine,
			Distance: geospatial.PlanarDistance(p.Lon, p.Lat, e.Lon, e.Lat),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Stats returns the summary computed at load time.
func (s *Store) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	st := s.stats
	return &st, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
