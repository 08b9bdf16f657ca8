package mapview

import (
	"context"
	"sync"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

type reply struct {
	records []domain.Turbine
	err     error
}

type call struct {
	box   domain.BoundingBox
	limit int
	reply chan reply
}

// fakeQuerier hands every bounding-box call to the test, which answers it
// whenever it likes, so completion order is under test control.
type fakeQuerier struct {
	calls     chan call
	nearestFn func(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error)

	mu       sync.Mutex
	nearestK []int
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{calls: make(chan call, 16)}
}

func (f *fakeQuerier) InBoundingBox(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	c := call{box: box, limit: limit, reply: make(chan reply, 1)}
	f.calls <- c
	r := <-c.reply
	return r.records, r.err
}

func (f *fakeQuerier) Nearest(ctx context.Context, p domain.GeoPoint, k int) ([]domain.NearbyTurbine, error) {
	f.mu.Lock()
	f.nearestK = append(f.nearestK, k)
	f.mu.Unlock()
	if f.nearestFn != nil {
		return f.nearestFn(ctx, p, k)
	}
	return nil, nil
}

// instantQuerier answers every bounding-box call with the records inside
// the box.
type instantQuerier struct {
	records []domain.Turbine
	fakeQuerier
}

func (q *instantQuerier) InBoundingBox(ctx context.Context, box domain.BoundingBox, limit int) ([]domain.Turbine, error) {
	var out []domain.Turbine
	for _, t := range q.records {
		if box.Contains(t.Location()) {
			out = append(out, t)
		}
	}
	return out, nil
}

var germany = Viewport{
	Center: domain.GeoPoint{Lon: 10.4515, Lat: 51.1657},
	Zoom:   6,
	Width:  1280,
	Height: 800,
}

// turbineAt places a turbine under pixel px of vp.
func turbineAt(vp Viewport, id int64, px Pixel, mw float64) domain.Turbine {
	p := vp.Unproject(px)
	return domain.Turbine{ID: id, LocationName: "T", CapacityMW: mw, Lon: p.Lon, Lat: p.Lat}
}
