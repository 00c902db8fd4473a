package dto

import (
	"encoding/json"
	"time"

	"github.com/supportdesk/ticketflow/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Category    domain.TicketCategory `json:"category"`
	Description string                `json:"description"`
}

// ChangeStatusRequest payload. From is the status the client last saw.
type ChangeStatusRequest struct {
	From domain.TicketStatus `json:"from"`
	To   domain.TicketStatus `json:"to"`
}

// ReassignRequest payload. assignee_id is required; null unassigns.
type ReassignRequest struct {
	AssigneeID json.RawMessage `json:"assignee_id"`
}

// CreateMessageRequest payload for public messages and internal notes.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// TicketResponse represents a ticket.
type TicketResponse struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Category   domain.TicketCategory `json:"category"`
	Status     domain.TicketStatus   `json:"status"`
	CustomerID string                `json:"customer_id"`
	AssigneeID *string               `json:"assignee_id"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	ClosedAt   *time.Time            `json:"closed_at"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID         string      `json:"id"`
	TicketID   string      `json:"ticket_id"`
	AuthorID   string      `json:"author_id"`
	AuthorRole domain.Role `json:"author_role"`
	Content    string      `json:"content"`
	IsInternal bool        `json:"is_internal"`
	CreatedAt  time.Time   `json:"created_at"`
}

// TicketDetailResponse provides a ticket with its visible thread.
type TicketDetailResponse struct {
	TicketResponse
	Messages []TicketMessageResponse `json:"messages"`
}

// CreatedTicketResponse is returned by ticket creation.
type CreatedTicketResponse struct {
	Ticket  TicketResponse        `json:"ticket"`
	Message TicketMessageResponse `json:"message"`
}

// PostedMessageResponse is returned when a message may also move the ticket.
type PostedMessageResponse struct {
	Message TicketMessageResponse `json:"message"`
	Ticket  TicketResponse        `json:"ticket"`
}

// ListResponse wraps one page of items.
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:         ticket.ID,
		Title:      ticket.Title,
		Category:   ticket.Category,
		Status:     ticket.Status,
		CustomerID: ticket.CustomerID,
		AssigneeID: ticket.AssigneeID,
		CreatedAt:  ticket.CreatedAt,
		UpdatedAt:  ticket.UpdatedAt,
		ClosedAt:   ticket.ClosedAt,
	}
}

// NewTicketMessageResponse maps a message.
func NewTicketMessageResponse(msg *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:         msg.ID,
		TicketID:   msg.TicketID,
		AuthorID:   msg.AuthorID,
		AuthorRole: msg.AuthorRole,
		Content:    msg.Content,
		IsInternal: msg.IsInternal,
		CreatedAt:  msg.CreatedAt,
	}
}

// NewTicketDetailResponse maps a ticket and its messages.
func NewTicketDetailResponse(ticket *domain.Ticket, messages []domain.TicketMessage) TicketDetailResponse {
	msgs := make([]TicketMessageResponse, 0, len(messages))
	for i := range messages {
		msgs = append(msgs, NewTicketMessageResponse(&messages[i]))
	}
	return TicketDetailResponse{TicketResponse: NewTicketResponse(ticket), Messages: msgs}
}
