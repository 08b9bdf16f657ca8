// Command viewer is a headless map client. It settles on the configured
// viewport, reports what the map would draw, and with "watch" re-fetches
// whenever the API announces a dataset change.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/goccy/go-json"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/mapview"
	"github.com/samirrijal/turbinemap/internal/pkg/config"
	"github.com/samirrijal/turbinemap/internal/pkg/logging"
)

func main() {
	cfg, err := config.Load("turbinemap-viewer")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vc := cfg.Viewer
	client := mapview.NewHTTPClient(vc.APIURL, time.Duration(vc.RequestTimeout)*time.Second)
	ctrl := mapview.NewController(client, mapview.Options{
		Threshold:  vc.ClusterThreshold,
		ExpandZoom: vc.ExpandZoom,
	})
	ctrl.Sync().OnChange(func(st mapview.Status) {
		if st.State == mapview.Error {
			slog.Warn("viewport fetch failed", "seq", st.Seq, "error", st.Err)
			return
		}
		slog.Debug("viewport state", "state", st.State.String(), "seq", st.Seq, "turbines", st.Count)
	})

	vp := mapview.Viewport{
		Center: domain.GeoPoint{Lon: vc.CenterLon, Lat: vc.CenterLat},
		Zoom:   vc.Zoom,
		Width:  vc.Width,
		Height: vc.Height,
	}
	if vc.Zoom <= 0 {
		// no configured view: show the whole dataset
		fitted, err := mapview.DatasetViewport(ctx, client, vc.Width, vc.Height)
		if err != nil {
			slog.Warn("dataset extent unavailable, using configured center", "error", err)
		} else {
			vp = fitted
			slog.Info("viewport fitted to dataset", "center_lon", vp.Center.Lon, "center_lat", vp.Center.Lat, "zoom", vp.Zoom)
		}
	}
	if _, err := ctrl.Dispatch(ctx, mapview.SettleEvent{Viewport: vp}); err != nil {
		log.Fatalf("viewport: %v", err)
	}
	ctrl.Sync().Wait()
	report(ctrl)

	// A secondary click at the centre shows the closest turbines.
	out, err := ctrl.Dispatch(ctx, mapview.SecondaryClickEvent{X: float64(vp.Width) / 2, Y: float64(vp.Height) / 2})
	if err != nil {
		slog.Warn("nearest lookup failed", "error", err)
	} else if out.Popup != nil {
		fmt.Println(out.Popup.Text())
	}

	if len(os.Args) > 1 && os.Args[1] == "watch" {
		if err := watch(ctx, vc.APIURL, ctrl); err != nil && ctx.Err() == nil {
			log.Fatalf("watch: %v", err)
		}
	}
}

func report(ctrl *mapview.Controller) {
	ws := ctrl.Sync().Snapshot()
	markers := ctrl.Markers()

	var counts, singles int
	for _, m := range markers {
		if m.Kind == mapview.CountMarker {
			counts++
		} else {
			singles++
		}
	}
	slog.Info("map ready",
		"state", ctrl.Sync().State().String(),
		"box", ws.Box().String(),
		"turbines", ws.Len(),
		"clusters", len(ctrl.Clusters()),
		"count_markers", counts,
		"turbine_markers", singles,
	)
}

type datasetMessage struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
}

// watch follows the API's dataset relay and refreshes the map on every
// change until ctx is cancelled.
func watch(ctx context.Context, apiURL string, ctrl *mapview.Controller) error {
	wsURL, err := relayURL(apiURL)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	slog.Info("watching dataset changes", "url", wsURL)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg datasetMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "dataset_changed" {
			continue
		}
		slog.Info("dataset changed, refreshing", "subject", msg.Subject)
		if _, err := ctrl.Dispatch(ctx, mapview.RefreshEvent{}); err != nil {
			slog.Warn("refresh failed", "error", err)
			continue
		}
		ctrl.Sync().Wait()
		report(ctrl)
	}
}

func relayURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
