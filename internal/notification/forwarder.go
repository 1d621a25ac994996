package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/frahmantamala/docflow/internal/core/events"
)

// Publisher is the slice of *nats.Conn the forwarder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Forwarder mirrors every bus event onto NATS subjects "<prefix>.<event type>".
type Forwarder struct {
	publisher Publisher
	prefix    string
	logger    *slog.Logger
}

func NewForwarder(publisher Publisher, prefix string, logger *slog.Logger) *Forwarder {
	return &Forwarder{publisher: publisher, prefix: prefix, logger: logger}
}

func (f *Forwarder) Subject(eventType string) string {
	if f.prefix == "" {
		return eventType
	}
	return f.prefix + "." + eventType
}

func (f *Forwarder) Forward(_ context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}
	subject := f.Subject(event.EventType())
	if err := f.publisher.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	f.logger.Debug("event forwarded", "subject", subject, "event_id", event.EventID())
	return nil
}

func (f *Forwarder) Register(eventBus *events.EventBus) {
	eventBus.Subscribe(events.Wildcard, f.Forward)
}

// ConnectNATS opens a connection that keeps reconnecting in the background.
func ConnectNATS(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}
	return nc, nil
}
