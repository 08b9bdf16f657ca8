package mapview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

func TestHTTPClient_InBoundingBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/turbines/bbox", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "5.5", q.Get("minLon"))
		assert.Equal(t, "47", q.Get("minLat"))
		assert.Equal(t, "15.25", q.Get("maxLon"))
		assert.Equal(t, "55", q.Get("maxLat"))
		assert.Equal(t, "50", q.Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"location_name":"Emden","capacity_mw":2,"lon":7.2,"lat":53.4}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	got, err := c.InBoundingBox(context.Background(), domain.BoundingBox{MinLon: 5.5, MinLat: 47, MaxLon: 15.25, MaxLat: 55}, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Emden", got[0].LocationName)
	assert.Equal(t, 2.0, got[0].CapacityMW)
}

func TestHTTPClient_NearestTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/turbines/nearest", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":1,"distance":0.1},{"id":2,"distance":0.2},{"id":3,"distance":0.3}]`))
	}))
	defer srv.Close()

	got, err := NewHTTPClient(srv.URL, 0).Nearest(context.Background(), domain.GeoPoint{Lon: 8, Lat: 53}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.1, got[0].Distance)
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad request", 400, `{"status":400,"error":"invalid_argument","details":"minLon: not a number"}`, domain.ErrInvalidArgument},
		{"unknown field", 422, `{"status":422,"error":"invalid_argument"}`, domain.ErrInvalidArgument},
		{"rate limited", 429, `{"status":429,"error":"rate_limited","details":"too many requests"}`, domain.ErrStoreUnavailable},
		{"no route", 404, `{"status":404,"error":"not_found"}`, domain.ErrStoreUnavailable},
		{"timeout", 408, ``, domain.ErrStoreUnavailable},
		{"store down", 500, `{"status":500,"error":"store_unavailable","details":"spatial store unavailable"}`, domain.ErrStoreUnavailable},
		{"gateway", 502, `<html>bad gateway</html>`, domain.ErrStoreUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, time.Second).InBoundingBox(context.Background(), domain.BoundingBox{}, 0)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHTTPClient_DetailsSurfaceInError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		_, _ = w.Write([]byte(`{"status":400,"error":"invalid_argument","details":"lat out of range"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Nearest(context.Background(), domain.GeoPoint{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lat out of range")
}

func TestHTTPClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, time.Second).InBoundingBox(context.Background(), domain.BoundingBox{}, 0)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).InBoundingBox(context.Background(), domain.BoundingBox{}, 0)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestHTTPClient_DrivesSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":2,"lon":10.4,"lat":51.1},{"id":1,"lon":10.5,"lat":51.2}]`))
	}))
	defer srv.Close()

	s := NewSync(NewHTTPClient(srv.URL, time.Second), 0)
	_, err := s.Start(context.Background(), germany)
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 2, s.Snapshot().Len())
}

func TestHTTPClient_RateLimitIsNotInvalidArgument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":429,"error":"rate_limited","details":"too many requests"}`))
	}))
	defer srv.Close()

	s := NewSync(NewHTTPClient(srv.URL, time.Second), 0)
	_, err := s.Start(context.Background(), germany)
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, Error, s.State())
	assert.ErrorIs(t, s.LastError(), domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, s.LastError(), domain.ErrInvalidArgument)
}

func TestHTTPClient_Stats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/turbines/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"count":3,"total_capacity_mw":7.5,"extent":{"min_lon":6,"min_lat":48,"max_lon":14,"max_lat":54}}`))
	}))
	defer srv.Close()

	st, err := NewHTTPClient(srv.URL, time.Second).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Count)
	assert.Equal(t, 7.5, st.TotalCapacityMW)
	assert.Equal(t, domain.BoundingBox{MinLon: 6, MinLat: 48, MaxLon: 14, MaxLat: 54}, st.Extent)
}

func TestDatasetViewport_FitsExtent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":3,"total_capacity_mw":7.5,"extent":{"min_lon":6,"min_lat":48,"max_lon":14,"max_lat":54}}`))
	}))
	defer srv.Close()

	vp, err := DatasetViewport(context.Background(), NewHTTPClient(srv.URL, time.Second), 1280, 800)
	require.NoError(t, err)
	assert.Equal(t, 1280, vp.Width)
	assert.Equal(t, 800, vp.Height)
	assert.InDelta(t, 10, vp.Center.Lon, 1e-9)
	assert.Greater(t, vp.Zoom, 0.0)
	assert.LessOrEqual(t, vp.Zoom, float64(MaxZoom))

	b := vp.Bounds()
	for _, p := range []domain.GeoPoint{{Lon: 6, Lat: 48}, {Lon: 14, Lat: 54}} {
		assert.True(t, b.Contains(p), "%+v outside fitted bounds %+v", p, b)
	}
}

func TestDatasetViewport_EmptyDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":0,"total_capacity_mw":0,"extent":{"min_lon":0,"min_lat":0,"max_lon":0,"max_lat":0}}`))
	}))
	defer srv.Close()

	_, err := DatasetViewport(context.Background(), NewHTTPClient(srv.URL, time.Second), 1280, 800)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}
