package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes rendered notifications to a NATS subject so other
// tooling (bots, dashboards) can consume them without scraping the webhook.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// natsPayload is the wire form published to the subject.
type natsPayload struct {
	Content string            `json:"content"`
	Params  map[string]string `json:"params,omitempty"`
}

// NewNATSPublisher connects to url and publishes to subject. Empty url or
// subject disables the sink.
func NewNATSPublisher(url, subject string) (Notifier, error) {
	if url == "" || subject == "" {
		return Nop{}, nil
	}
	conn, err := nats.Connect(url, nats.Name("valheim-tracker"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Notify publishes the rendered message and its parameters.
func (p *NATSPublisher) Notify(_ context.Context, msg Message) error {
	data, err := json.Marshal(natsPayload{Content: msg.Render(), Params: msg.Params})
	if err != nil {
		return fmt.Errorf("encoding nats payload: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Drain()
}
