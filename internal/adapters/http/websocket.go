package http

import (
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/turbinemap/internal/core/domain"
	"github.com/samirrijal/turbinemap/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsMessage is sent by clients. The only action is "ping".
type wsMessage struct {
	Action string `json:"action"`
}

// wsEvent wraps a dataset-change notification for browser clients, which
// refetch their viewport when one arrives.
type wsEvent struct {
	Type    string          `json:"type"`
	Subject string          `json:"subject"`
	Event   json.RawMessage `json:"event"`
}

// WebSocketHandler relays dataset-change notifications from NATS to every
// connected client.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote_addr", remoteAddr)
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		sub, err := nc.Subscribe(domain.DatasetSubjectWildcard, func(msg *nats.Msg) {
			ev := wsEvent{Type: "dataset_changed", Subject: msg.Subject, Event: json.RawMessage(msg.Data)}
			if !json.Valid(msg.Data) {
				ev.Event = json.RawMessage("null")
			}
			_ = writeJSON(ev)
		})
		if err != nil {
			logger.Error("ws subscribe failed", "subject", domain.DatasetSubjectWildcard, "error", err)
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			switch m.Action {
			case "ping":
				_ = writeJSON(map[string]string{"type": "pong"})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		logger.Info("ws client disconnected")
	}
}
