package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk/ticketflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketMessageAdded  EventType = "ticket_message_added"
)

// EventTypes lists every published type.
var EventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventTicketMessageAdded,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a committed workflow change.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// New builds an event stamped with a fresh id.
func New(eventType EventType, ticketID string, actor domain.Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     Actor{ID: actor.ID, Role: actor.Role},
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Category   domain.TicketCategory `json:"category"`
	CustomerID string                `json:"customer_id"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload. A nil AssigneeID means the ticket was released.
type TicketAssignedPayload struct {
	PreviousAssigneeID *string `json:"previous_assignee_id"`
	AssigneeID         *string `json:"assignee_id"`
}

// TicketMessageAddedPayload payload. Internal notes never carry a preview.
type TicketMessageAddedPayload struct {
	MessageID   string      `json:"message_id"`
	AuthorRole  domain.Role `json:"author_role"`
	IsInternal  bool        `json:"is_internal"`
	BodyPreview string      `json:"body_preview,omitempty"`
}

const previewRunes = 140

// MessagePayload builds the payload for msg.
func MessagePayload(msg *domain.TicketMessage) TicketMessageAddedPayload {
	payload := TicketMessageAddedPayload{
		MessageID:  msg.ID,
		AuthorRole: msg.AuthorRole,
		IsInternal: msg.IsInternal,
	}
	if !msg.IsInternal {
		payload.BodyPreview = preview(msg.Content)
	}
	return payload
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewRunes {
		return body
	}
	return string(runes[:previewRunes]) + "…"
}
