package mapview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

func TestViewport_ProjectCenter(t *testing.T) {
	px := germany.Project(germany.Center)
	assert.InDelta(t, 640, px.X, 1e-6)
	assert.InDelta(t, 400, px.Y, 1e-6)
}

func TestViewport_RoundTrip(t *testing.T) {
	for _, px := range []Pixel{{0, 0}, {123.5, 77}, {1280, 800}} {
		back := germany.Project(germany.Unproject(px))
		assert.InDelta(t, px.X, back.X, 1e-6)
		assert.InDelta(t, px.Y, back.Y, 1e-6)
	}
}

func TestViewport_BoundsContainCenter(t *testing.T) {
	b := germany.Bounds()
	assert.True(t, b.Contains(germany.Center))
	assert.Less(t, b.MinLon, b.MaxLon)
	assert.Less(t, b.MinLat, b.MaxLat)
}

func TestViewport_BoundsClampedAtWorldEdge(t *testing.T) {
	vp := Viewport{Center: domain.GeoPoint{Lon: 170, Lat: 0}, Zoom: 1, Width: 1024, Height: 512}
	b := vp.Bounds()
	assert.Equal(t, 180.0, b.MaxLon)
	assert.GreaterOrEqual(t, b.MinLon, -180.0)
}

func TestViewport_ZoomDoublesPixelDistance(t *testing.T) {
	a := domain.GeoPoint{Lon: 10, Lat: 51}
	b := domain.GeoPoint{Lon: 10.1, Lat: 51}
	vp := germany
	d6 := vp.Project(b).X - vp.Project(a).X
	vp.Zoom = 7
	d7 := vp.Project(b).X - vp.Project(a).X
	assert.InDelta(t, 2*d6, d7, 1e-9)
}

func TestViewport_Validate(t *testing.T) {
	require.NoError(t, germany.Validate())

	bad := germany
	bad.Width = 0
	assert.True(t, errors.Is(bad.Validate(), domain.ErrInvalidArgument))

	bad = germany
	bad.Zoom = -1
	assert.Error(t, bad.Validate())
}

func TestViewport_FitShowsExtent(t *testing.T) {
	box := domain.BoundingBox{MinLon: 9, MinLat: 53, MaxLon: 9.2, MaxLat: 53.1}
	fit := germany.Fit(box, MaxZoom)

	assert.Greater(t, fit.Zoom, germany.Zoom)
	assert.True(t, fit.Bounds().Contains(domain.GeoPoint{Lon: 9, Lat: 53}))
	assert.True(t, fit.Bounds().Contains(domain.GeoPoint{Lon: 9.2, Lat: 53.1}))
}

func TestViewport_FitPointUsesMaxZoom(t *testing.T) {
	box := domain.BoundingBox{MinLon: 9, MinLat: 53, MaxLon: 9, MaxLat: 53}
	fit := germany.Fit(box, 16)
	assert.Equal(t, 16.0, fit.Zoom)
	assert.InDelta(t, 9, fit.Center.Lon, 1e-9)
}

func TestWorkingSet_LaterDuplicateWins(t *testing.T) {
	ws := NewWorkingSet(1, domain.BoundingBox{}, []domain.Turbine{
		{ID: 5, LocationName: "old"},
		{ID: 1, LocationName: "a"},
		{ID: 5, LocationName: "new"},
	})
	require.Equal(t, 2, ws.Len())
	got, ok := ws.Get(5)
	require.True(t, ok)
	assert.Equal(t, "new", got.LocationName)
	assert.Equal(t, int64(1), ws.Turbines()[0].ID)

	_, ok = ws.Get(99)
	assert.False(t, ok)
}
