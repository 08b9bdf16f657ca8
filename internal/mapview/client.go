package mapview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// HTTPClient implements Querier against the turbine REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the API at baseURL. timeout bounds
// each request; 0 means 10s.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError mirrors the server's error body.
type apiError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// InBoundingBox calls GET /v1/turbines/bbox.
func (c *HTTPClient) InBoundingBox(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	q := url.Values{}
	q.Set("minLon", formatCoord(box.MinLon))
	q.Set("minLat", formatCoord(box.MinLat))
	q.Set("maxLon", formatCoord(box.MaxLon))
	q.Set("maxLat", formatCoord(box.MaxLat))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out []domain.Turbine
	if err := c.get(ctx, "/v1/turbines/bbox", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Nearest calls GET /v1/turbines/nearest. The endpoint answers with at most
// three turbines; a smaller k truncates the result.
func (c *HTTPClient) Nearest(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	q := url.Values{}
	q.Set("lon", formatCoord(p.Lon))
	q.Set("lat", formatCoord(p.Lat))

	var out []domain.NearbyTurbine
	if err := c.get(ctx, "/v1/turbines/nearest", q, &out); err != nil {
		return nil, err
	}
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Stats calls GET /v1/turbines/stats.
func (c *HTTPClient) Stats(ctx context.Context) (*domain.DatasetStats, error) {
	var out domain.DatasetStats
	if err := c.get(ctx, "/v1/turbines/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StatsSource reports the dataset summary. HTTPClient implements it.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.DatasetStats, error)
}

// ErrEmptyDataset is returned by DatasetViewport when there is nothing to fit.
var ErrEmptyDataset = errors.New("dataset is empty")

// DatasetViewport returns a width x height viewport showing the whole
// dataset extent, capped at MaxZoom.
func DatasetViewport(ctx context.Context, src StatsSource, width, height int) (Viewport, error) {
	stats, err := src.Stats(ctx)
	if err != nil {
		return Viewport{}, err
	}
	if stats.Count == 0 {
		return Viewport{}, ErrEmptyDataset
	}
	vp := Viewport{Width: width, Height: height}.Fit(stats.Extent, MaxZoom)
	if err := vp.Validate(); err != nil {
		return Viewport{}, err
	}
	return vp, nil
}

// get performs a GET and decodes a JSON body into dst. 4xx responses map to
// ErrInvalidArgument; 5xx, throttling, timeouts, a missing endpoint and
// transport failures map to ErrStoreUnavailable.
func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: GET %s: %w", domain.ErrStoreUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", domain.ErrStoreUnavailable, path, err)
	}

	if resp.StatusCode >= 400 {
		var ae apiError
		_ = json.Unmarshal(body, &ae)
		details := ae.Details
		if details == "" {
			details = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode < 500 && !transientStatus(resp.StatusCode) {
			return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, details)
		}
		return fmt.Errorf("%w: %s (HTTP %d)", domain.ErrStoreUnavailable, details, resp.StatusCode)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domain.ErrStoreUnavailable, path, err)
	}
	return nil
}

// transientStatus reports 4xx codes that say nothing about the request's
// coordinates; the next settle may well succeed.
func transientStatus(code int) bool {
	switch code {
	case http.StatusNotFound, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
