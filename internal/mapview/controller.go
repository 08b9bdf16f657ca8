package mapview

import (
	"context"
	"fmt"
)

// Event is anything the host feeds into Dispatch.
type Event interface {
	event()
}

// SettleEvent reports that panning or zooming has come to rest.
type SettleEvent struct {
	Viewport Viewport
}

// RefreshEvent forces a re-fetch of the current viewport, e.g. after the
// server announced a dataset change.
type RefreshEvent struct{}

// ClickEvent is a primary click at a screen position.
type ClickEvent struct {
	X, Y float64
}

// SecondaryClickEvent is a secondary (right) click at a screen position.
type SecondaryClickEvent struct {
	X, Y float64
}

func (SettleEvent) event()         {}
func (RefreshEvent) event()        {}
func (ClickEvent) event()          {}
func (SecondaryClickEvent) event() {}

// Outcome is what the host should show after an event. At most one field
// is set.
type Outcome struct {
	Popup   *Popup
	ZoomTo  *ZoomTo
	Fetched bool // a viewport fetch was started
}

// Options configures a Controller. Zero values take the package defaults.
type Options struct {
	Limit      int
	Threshold  float64
	ExpandZoom float64
	HitRadius  float64
}

// Controller is the single entry point for map events. Dispatch is meant
// to be called from one goroutine; fetches complete on their own.
type Controller struct {
	sync     *Sync
	engine   *ClusterEngine
	policy   RenderPolicy
	resolver *Resolver
}

// NewController wires a Sync, ClusterEngine, RenderPolicy, and Resolver
// over client.
func NewController(client Querier, opts Options) *Controller {
	return &Controller{
		sync:     NewSync(client, opts.Limit),
		engine:   NewClusterEngine(opts.Threshold),
		policy:   RenderPolicy{ExpandZoom: opts.ExpandZoom},
		resolver: NewResolver(client, opts.HitRadius),
	}
}

// Sync exposes the viewport synchronizer for listeners and Wait.
func (c *Controller) Sync() *Sync { return c.sync }

// Dispatch handles one event.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (Outcome, error) {
	switch e := ev.(type) {
	case SettleEvent:
		started, err := c.sync.Settle(ctx, e.Viewport)
		return Outcome{Fetched: started}, err

	case RefreshEvent:
		return Outcome{Fetched: c.sync.Refresh(ctx)}, nil

	case ClickEvent:
		vp, ok := c.sync.Viewport()
		if !ok {
			return Outcome{}, nil
		}
		ws := c.sync.Snapshot()
		markers := c.policy.Markers(c.engine.Cluster(ws, vp), vp)
		popup, zoom := c.resolver.Click(ws, markers, vp, Pixel{X: e.X, Y: e.Y})
		return Outcome{Popup: popup, ZoomTo: zoom}, nil

	case SecondaryClickEvent:
		vp, ok := c.sync.Viewport()
		if !ok {
			return Outcome{}, nil
		}
		popup, err := c.resolver.SecondaryClick(ctx, vp, Pixel{X: e.X, Y: e.Y})
		return Outcome{Popup: popup}, err

	default:
		return Outcome{}, fmt.Errorf("mapview: unsupported event %T", ev)
	}
}

// Clusters groups the current snapshot for the current viewport.
func (c *Controller) Clusters() []Cluster {
	vp, ok := c.sync.Viewport()
	if !ok {
		return nil
	}
	return c.engine.Cluster(c.sync.Snapshot(), vp)
}

// Markers returns what should be drawn for the current snapshot and
// viewport.
func (c *Controller) Markers() []Marker {
	vp, ok := c.sync.Viewport()
	if !ok {
		return nil
	}
	return c.policy.Markers(c.engine.Cluster(c.sync.Snapshot(), vp), vp)
}
