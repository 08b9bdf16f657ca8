package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// Publisher announces dataset changes to running API instances.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// PublishDatasetChanged publishes ev on domain.DatasetSubjectPrefix+reason
// and flushes so the message is on the wire before a short-lived caller exits.
func (p *Publisher) PublishDatasetChanged(ctx context.Context, reason string, ev domain.DatasetEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(domain.DatasetSubjectPrefix+reason, data); err != nil {
		return fmt.Errorf("publish dataset event: %w", err)
	}
	return p.conn.FlushWithContext(ctx)
}

// RawConn creates a plain NATS connection shared by the subscriber, the
// publisher and the WebSocket relay.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("turbinemap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
