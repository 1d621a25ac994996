package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/frahmantamala/docflow/internal/core/events"
)

// Subscriber is the receiving half of Forwarder: it reads events from NATS,
// restores their concrete types and republishes them on a local bus.
type Subscriber struct {
	bus    *events.EventBus
	prefix string
	logger *slog.Logger
}

func NewSubscriber(bus *events.EventBus, prefix string, logger *slog.Logger) *Subscriber {
	return &Subscriber{bus: bus, prefix: prefix, logger: logger}
}

// Subscribe listens on every subject under the prefix until the returned
// subscription is drained.
func (s *Subscriber) Subscribe(nc *nats.Conn, queue string) (*nats.Subscription, error) {
	subject := ">"
	if s.prefix != "" {
		subject = s.prefix + ".>"
	}
	sub, err := nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if err := s.Handle(context.Background(), msg.Subject, msg.Data); err != nil {
			s.logger.Error("failed to handle forwarded event", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	s.logger.Info("listening for forwarded events", "subject", subject, "queue", queue)
	return sub, nil
}

// Handle decodes one forwarded message and runs the local handlers for it.
func (s *Subscriber) Handle(ctx context.Context, subject string, data []byte) error {
	event, err := Decode(strings.TrimPrefix(subject, s.prefix+"."), data)
	if err != nil {
		return err
	}
	return s.bus.PublishSync(ctx, event)
}

// Decode restores the typed event Forwarder marshalled for eventType.
func Decode(eventType string, data []byte) (events.Event, error) {
	var event events.Event
	switch {
	case eventType == events.EventTypeInvitationCreated:
		event = &events.InvitationCreatedEvent{}
	case eventType == events.EventTypePurged:
		event = &events.PurgedEvent{}
	case strings.HasPrefix(eventType, "workflow."):
		event = &events.TransitionEvent{}
	default:
		event = &events.BaseEvent{}
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	if event.EventType() != eventType {
		return nil, fmt.Errorf("subject %s carries event type %q", eventType, event.EventType())
	}
	return event, nil
}
