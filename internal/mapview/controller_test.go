package mapview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

type unknownEvent struct{ SettleEvent }

func TestController_DispatchFlow(t *testing.T) {
	q := &instantQuerier{records: []domain.Turbine{
		turbineAt(germany, 1, Pixel{300, 300}, 2.0),
		turbineAt(germany, 2, Pixel{310, 300}, 1.0),
		turbineAt(germany, 3, Pixel{900, 600}, 2.0),
	}}
	c := NewController(q, Options{})
	ctx := context.Background()

	out, err := c.Dispatch(ctx, ClickEvent{X: 300, Y: 300})
	require.NoError(t, err)
	assert.Equal(t, Outcome{}, out, "clicks before the first settle do nothing")

	out, err = c.Dispatch(ctx, SettleEvent{Viewport: germany})
	require.NoError(t, err)
	require.True(t, out.Fetched)
	c.Sync().Wait()

	require.Len(t, c.Clusters(), 2)
	require.Len(t, c.Markers(), 2)

	out, err = c.Dispatch(ctx, ClickEvent{X: 900, Y: 600})
	require.NoError(t, err)
	require.NotNil(t, out.Popup)
	assert.Equal(t, int64(3), out.Popup.Turbine.ID)
	assert.Equal(t, int64(1143), out.Popup.HouseholdsPowered)

	out, err = c.Dispatch(ctx, ClickEvent{X: 305, Y: 300})
	require.NoError(t, err)
	require.NotNil(t, out.ZoomTo)

	// the host applies the zoom, which settles a new viewport
	out, err = c.Dispatch(ctx, SettleEvent{Viewport: out.ZoomTo.Viewport})
	require.NoError(t, err)
	require.True(t, out.Fetched)
	c.Sync().Wait()
	for _, m := range c.Markers() {
		assert.Equal(t, TurbineMarker, m.Kind, "members split apart after zooming in")
	}
}

func TestController_RefreshAndSecondaryClick(t *testing.T) {
	q := &instantQuerier{}
	q.nearestFn = func(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
		return []domain.NearbyTurbine{{Turbine: domain.Turbine{ID: 8, Lon: p.Lon, Lat: p.Lat}}}, nil
	}
	c := NewController(q, Options{})
	ctx := context.Background()

	out, err := c.Dispatch(ctx, RefreshEvent{})
	require.NoError(t, err)
	assert.False(t, out.Fetched)

	_, _ = c.Dispatch(ctx, SettleEvent{Viewport: germany})
	c.Sync().Wait()

	out, err = c.Dispatch(ctx, SettleEvent{Viewport: germany})
	require.NoError(t, err)
	assert.False(t, out.Fetched, "unchanged viewport")

	out, err = c.Dispatch(ctx, RefreshEvent{})
	require.NoError(t, err)
	assert.True(t, out.Fetched)
	c.Sync().Wait()

	out, err = c.Dispatch(ctx, SecondaryClickEvent{X: 10, Y: 10})
	require.NoError(t, err)
	require.NotNil(t, out.Popup)
	assert.Equal(t, int64(8), out.Popup.Turbine.ID)
	assert.InDelta(t, 0, *out.Popup.DistanceKM, 1e-9)
}

func TestController_UnknownEvent(t *testing.T) {
	c := NewController(newFakeQuerier(), Options{})
	_, err := c.Dispatch(context.Background(), unknownEvent{})
	assert.Error(t, err)
}
