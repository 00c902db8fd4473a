package domain

import "time"

// AuditEntityType names the kind of record an audit entry documents.
type AuditEntityType string

const (
	AuditEntityTicket        AuditEntityType = "TICKET"
	AuditEntityTicketMessage AuditEntityType = "TICKET_MESSAGE"
)

// AuditAction tags what happened.
type AuditAction string

const (
	AuditActionTicketCreated   AuditAction = "TICKET_CREATED"
	AuditActionStatusChanged   AuditAction = "STATUS_CHANGED"
	AuditActionAssigneeChanged AuditAction = "ASSIGNEE_CHANGED"
	AuditActionMessageCreated  AuditAction = "MESSAGE_CREATED"
)

// AuditMessageRef identifies the message a MESSAGE_CREATED entry refers to.
type AuditMessageRef struct {
	ID         string `json:"id"`
	IsInternal bool   `json:"is_internal"`
}

// AuditMetadata is the persisted snapshot of one write. Before and After
// hold only the fields that write changed.
type AuditMetadata struct {
	TicketID string           `json:"ticket_id,omitempty"`
	Before   map[string]any   `json:"before,omitempty"`
	After    map[string]any   `json:"after,omitempty"`
	Message  *AuditMessageRef `json:"message,omitempty"`
}

// AuditLogEntry is an immutable record of one state change.
type AuditLogEntry struct {
	ID         string
	EntityType AuditEntityType
	EntityID   string
	Action     AuditAction
	ActorID    string
	Metadata   AuditMetadata
	CreatedAt  time.Time
}
