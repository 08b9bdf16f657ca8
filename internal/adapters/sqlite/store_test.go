package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

func seed(t *testing.T, rows []domain.Turbine) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "turbines.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(Schema(DefaultTable))
	require.NoError(t, err)
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO german_wind_power (id, location_name, capacity_mw, lon, lat) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.LocationName, r.CapacityMW, r.Lon, r.Lat)
		require.NoError(t, err)
	}
	return path
}

func open(t *testing.T, rows []domain.Turbine) *Store {
	t.Helper()
	s, err := Open(context.Background(), seed(t, rows), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var fixture = []domain.Turbine{
	{ID: 1, LocationName: "Emden", CapacityMW: 2.0, Lon: 7.20, Lat: 53.37},
	{ID: 2, LocationName: "Husum", CapacityMW: 3.0, Lon: 9.05, Lat: 54.48},
	{ID: 3, LocationName: "Corner", CapacityMW: 1.5, Lon: 8.00, Lat: 52.00},
	{ID: 4, LocationName: "", CapacityMW: 0, Lon: 10.00, Lat: 51.00},
	{ID: 5, LocationName: "Far", CapacityMW: 4.2, Lon: 13.40, Lat: 48.00},
}

func TestStore_ContainedIn_InclusiveEdges(t *testing.T) {
	s := open(t, fixture)
	box := domain.BoundingBox{MinLon: 7.20, MinLat: 52.00, MaxLon: 9.05, MaxLat: 54.48}

	got, err := s.ContainedIn(context.Background(), box, 100)
	require.NoError(t, err)

	ids := make([]int64, len(got))
	for i, tb := range got {
		ids[i] = tb.ID
		assert.True(t, box.Contains(tb.Location()), "turbine %d outside box", tb.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestStore_ContainedIn_Limit(t *testing.T) {
	s := open(t, fixture)
	box := domain.BoundingBox{MinLon: -180, MinLat: -90, MaxLon: 180, MaxLat: 90}

	got, err := s.ContainedIn(context.Background(), box, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)
}

func TestStore_ContainedIn_Degenerate(t *testing.T) {
	s := open(t, fixture)
	box := domain.BoundingBox{MinLon: 10, MinLat: 51, MaxLon: 10, MaxLat: 51}

	got, err := s.ContainedIn(context.Background(), box, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].ID)
	assert.Equal(t, "", got[0].LocationName)
}

func TestStore_NearestTo(t *testing.T) {
	s := open(t, fixture)

	got, err := s.NearestTo(context.Background(), domain.GeoPoint{Lon: 8.0, Lat: 52.1}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ID)
	assert.InDelta(t, 0.1, got[0].Distance, 1e-9)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
}

func TestStore_NearestTo_FewerThanK(t *testing.T) {
	s := open(t, fixture[:2])

	got, err := s.NearestTo(context.Background(), domain.GeoPoint{Lon: 0, Lat: 0}, 3)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_Stats(t *testing.T) {
	s := open(t, fixture)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Count)
	assert.InDelta(t, 10.7, st.TotalCapacityMW, 1e-9)
	assert.Equal(t, domain.BoundingBox{MinLon: 7.20, MinLat: 48.00, MaxLon: 13.40, MaxLat: 54.48}, st.Extent)
}

func TestOpen_MissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE other (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(context.Background(), path, "")
	assert.Error(t, err)
}
