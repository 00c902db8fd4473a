package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/events"
)

// NotificationService relays committed workflow events to the log and to
// any configured sinks, such as the Redis stream.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	sinks      []events.EventHandler
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, sinks ...events.EventHandler) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		sinks:      sinks,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", eventFields(event)...)
	return n.forward(ctx, event)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.TicketStatusChangedPayload); ok {
		fields = append(fields, zap.String("old_status", string(p.OldStatus)), zap.String("new_status", string(p.NewStatus)))
	}
	n.logger.Info("TicketStatusChanged", fields...)
	return n.forward(ctx, event)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.TicketAssignedPayload); ok && p.AssigneeID != nil {
		fields = append(fields, zap.String("assignee_id", *p.AssigneeID))
	}
	n.logger.Info("TicketAssigned", fields...)
	return n.forward(ctx, event)
}

// Message bodies stay out of the log; internal notes are flagged.
func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	fields := eventFields(event)
	if p, ok := event.Payload.(events.TicketMessageAddedPayload); ok {
		fields = append(fields, zap.String("message_id", p.MessageID), zap.Bool("is_internal", p.IsInternal))
	}
	n.logger.Info("TicketMessageAdded", fields...)
	return n.forward(ctx, event)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	var errs []error
	for _, sink := range n.sinks {
		if err := sink(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", string(event.Actor.Role)),
	}
}
