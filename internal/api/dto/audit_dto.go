package dto

import (
	"time"

	"github.com/supportdesk/ticketflow/internal/domain"
)

// AuditLogResponse represents one audit entry.
type AuditLogResponse struct {
	ID         string                 `json:"id"`
	EntityType domain.AuditEntityType `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Action     domain.AuditAction     `json:"action"`
	ActorID    string                 `json:"actor_id"`
	Metadata   domain.AuditMetadata   `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// NewAuditLogResponse maps an audit entry.
func NewAuditLogResponse(entry *domain.AuditLogEntry) AuditLogResponse {
	return AuditLogResponse{
		ID:         entry.ID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		ActorID:    entry.ActorID,
		Metadata:   entry.Metadata,
		CreatedAt:  entry.CreatedAt,
	}
}
