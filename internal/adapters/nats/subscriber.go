package natsadapter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// Subscriber implements ports.DatasetSubscriber on core NATS. Missed
// notifications only delay invalidation until the cache TTL expires.
type Subscriber struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber wraps an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeDatasetUpdates calls handler with the event version for every
// message on domain.DatasetSubjectWildcard. A body that is not a
// DatasetEvent is passed through with an empty version.
func (s *Subscriber) SubscribeDatasetUpdates(ctx context.Context, handler func(ctx context.Context, version string) error) error {
	sub, err := s.conn.Subscribe(domain.DatasetSubjectWildcard, func(msg *nats.Msg) {
		var ev domain.DatasetEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			ev = domain.DatasetEvent{}
		}
		if err := handler(ctx, ev.Version); err != nil {
			slog.Warn("dataset update handler failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return nil
}

// Close unsubscribes every subscription made through s.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}
