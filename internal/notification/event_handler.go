package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/frahmantamala/docflow/internal/core/events"
)

// Queue is what the event handler hands messages to. *Dispatcher satisfies it.
type Queue interface {
	Enqueue(msg Message) error
}

type EventHandler struct {
	queue  Queue
	logger *slog.Logger
}

func NewEventHandler(queue Queue, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		queue:  queue,
		logger: logger,
	}
}

func (h *EventHandler) HandleTransition(ctx context.Context, event events.Event) error {
	transition, ok := event.(*events.TransitionEvent)
	if !ok {
		h.logger.Error("invalid event type for transition handler", "event_type", event.EventType())
		return fmt.Errorf("expected TransitionEvent, got %T", event)
	}

	var dropped int
	for _, n := range transition.Notifications {
		msg := Message{
			ID:       uuid.New().String(),
			UserID:   n.UserID,
			Template: n.Template,
			Data:     n.Data,
		}
		if err := h.queue.Enqueue(msg); err != nil {
			dropped++
		}
	}

	h.logger.Info("transition notifications queued",
		"event_id", transition.EventID(),
		"kind", transition.Kind,
		"resource_id", transition.ResourceID,
		"count", len(transition.Notifications),
		"dropped", dropped)

	if dropped > 0 {
		return fmt.Errorf("%d of %d notifications dropped: %w", dropped, len(transition.Notifications), ErrQueueFull)
	}
	return nil
}

func (h *EventHandler) HandleInvitationCreated(ctx context.Context, event events.Event) error {
	invitation, ok := event.(*events.InvitationCreatedEvent)
	if !ok {
		return fmt.Errorf("expected InvitationCreatedEvent, got %T", event)
	}

	return h.queue.Enqueue(Message{
		ID:       uuid.New().String(),
		Email:    invitation.Email,
		Template: "space_invitation",
		Data: map[string]any{
			"space_id":   invitation.SpaceID,
			"token":      invitation.Token,
			"expires_at": invitation.ExpiresAt,
		},
	})
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	for _, t := range events.WorkflowEventTypes {
		eventBus.Subscribe(t, h.HandleTransition)
	}
	eventBus.Subscribe(events.EventTypeInvitationCreated, h.HandleInvitationCreated)

	h.logger.Info("notification event handlers registered",
		"handlers", len(events.WorkflowEventTypes)+1)
}
