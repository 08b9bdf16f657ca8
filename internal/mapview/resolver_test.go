package mapview

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

func markersFor(ws *WorkingSet, vp Viewport) []Marker {
	return RenderPolicy{ExpandZoom: DefaultExpandZoom}.Markers(NewClusterEngine(40).Cluster(ws, vp), vp)
}

func TestResolver_ClickSingleShowsPopup(t *testing.T) {
	tb := turbineAt(germany, 42, Pixel{200, 200}, 2.0)
	tb.LocationName = "Emden"
	ws := NewWorkingSet(1, germany.Bounds(), []domain.Turbine{tb})
	r := NewResolver(newFakeQuerier(), 0)

	popup, zoom := r.Click(ws, markersFor(ws, germany), germany, Pixel{205, 203})
	require.NotNil(t, popup)
	assert.Nil(t, zoom)
	assert.Equal(t, int64(42), popup.Turbine.ID)
	assert.Equal(t, int64(1143), popup.HouseholdsPowered)
	assert.Nil(t, popup.DistanceKM)
	assert.Contains(t, popup.Text(), "Emden")
	assert.Contains(t, popup.Text(), "1143 households")
}

func TestResolver_ClickGroupZoomsToFit(t *testing.T) {
	ws := NewWorkingSet(1, germany.Bounds(), []domain.Turbine{
		turbineAt(germany, 1, Pixel{300, 300}, 1),
		turbineAt(germany, 2, Pixel{320, 310}, 1),
	})
	r := NewResolver(newFakeQuerier(), 12)

	popup, zoom := r.Click(ws, markersFor(ws, germany), germany, Pixel{310, 305})
	assert.Nil(t, popup)
	require.NotNil(t, zoom)

	a, _ := ws.Get(1)
	b, _ := ws.Get(2)
	assert.True(t, zoom.Extent.Contains(a.Location()))
	assert.True(t, zoom.Extent.Contains(b.Location()))
	assert.Greater(t, zoom.Viewport.Zoom, germany.Zoom)
	assert.True(t, zoom.Viewport.Bounds().Contains(a.Location()))
	assert.True(t, zoom.Viewport.Bounds().Contains(b.Location()))
}

func TestResolver_ClickMiss(t *testing.T) {
	ws := NewWorkingSet(1, germany.Bounds(), []domain.Turbine{turbineAt(germany, 1, Pixel{300, 300}, 1)})
	r := NewResolver(newFakeQuerier(), 12)

	popup, zoom := r.Click(ws, markersFor(ws, germany), germany, Pixel{330, 300})
	assert.Nil(t, popup)
	assert.Nil(t, zoom)
}

func TestResolver_ClickPicksNearestMarker(t *testing.T) {
	ws := NewWorkingSet(1, germany.Bounds(), []domain.Turbine{
		turbineAt(germany, 1, Pixel{100, 100}, 1),
		turbineAt(germany, 2, Pixel{145, 100}, 1),
	})
	r := NewResolver(newFakeQuerier(), 30)

	popup, _ := r.Click(ws, markersFor(ws, germany), germany, Pixel{130, 100})
	require.NotNil(t, popup)
	assert.Equal(t, int64(2), popup.Turbine.ID)
}

func TestResolver_SecondaryClickReportsFirstResult(t *testing.T) {
	f := newFakeQuerier()
	var asked domain.GeoPoint
	f.nearestFn = func(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
		asked = p
		return []domain.NearbyTurbine{
			{Turbine: domain.Turbine{ID: 5, CapacityMW: 2.0, Lon: p.Lon + 0.1, Lat: p.Lat}, Distance: 0.1},
			{Turbine: domain.Turbine{ID: 6, Lon: p.Lon + 0.2, Lat: p.Lat}, Distance: 0.2},
		}, nil
	}
	r := NewResolver(f, 0)

	popup, err := r.SecondaryClick(context.Background(), germany, Pixel{640, 400})
	require.NoError(t, err)
	require.NotNil(t, popup)

	assert.InDelta(t, germany.Center.Lon, asked.Lon, 1e-9)
	assert.InDelta(t, germany.Center.Lat, asked.Lat, 1e-9)
	assert.Equal(t, []int{NearestCount}, f.nearestK)
	assert.Equal(t, int64(5), popup.Turbine.ID)
	assert.Equal(t, int64(1143), popup.HouseholdsPowered)
	require.NotNil(t, popup.Distance)
	assert.Equal(t, 0.1, *popup.Distance)
	require.NotNil(t, popup.DistanceKM)
	// 0.1 degree of longitude at 51.17N
	assert.InDelta(t, 6.98, *popup.DistanceKM, 0.05)
	assert.Contains(t, popup.Text(), "km")
}

func TestResolver_SecondaryClickEmptyDataset(t *testing.T) {
	r := NewResolver(newFakeQuerier(), 0)
	popup, err := r.SecondaryClick(context.Background(), germany, Pixel{10, 10})
	assert.NoError(t, err)
	assert.Nil(t, popup)
}

func TestResolver_SecondaryClickError(t *testing.T) {
	f := newFakeQuerier()
	f.nearestFn = func(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
		return nil, domain.ErrStoreUnavailable
	}
	r := NewResolver(f, 0)

	_, err := r.SecondaryClick(context.Background(), germany, Pixel{10, 10})
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}
