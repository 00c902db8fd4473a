package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
)

// Trail writes audit entries through the appender of the caller's
// transaction. It never retries on its own: atomicity and retry come from
// the enclosing guarded transaction.
type Trail struct {
	now   func() time.Time
	newID func() string
}

// NewTrail builds a Trail using the wall clock.
func NewTrail() *Trail {
	return &Trail{now: time.Now, newID: uuid.NewString}
}

// NewTrailWithClock builds a Trail with an explicit clock.
func NewTrailWithClock(now func() time.Time) *Trail {
	return &Trail{now: now, newID: uuid.NewString}
}

// Append writes one entry inside tx.
func (t *Trail) Append(ctx context.Context, w repository.AuditAppender, entityType domain.AuditEntityType, entityID string, action domain.AuditAction, actorID string, metadata domain.AuditMetadata) error {
	entry := &domain.AuditLogEntry{
		ID:         t.newID(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		Metadata:   metadata,
		CreatedAt:  t.now().UTC().Truncate(domain.VersionPrecision),
	}
	if err := w.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit %s: %w", action, err)
	}
	return nil
}

// TicketCreated records a new ticket's initial state.
func (t *Trail) TicketCreated(ctx context.Context, w repository.AuditAppender, ticket *domain.Ticket, actorID string) error {
	return t.Append(ctx, w, domain.AuditEntityTicket, ticket.ID, domain.AuditActionTicketCreated, actorID, domain.AuditMetadata{
		TicketID: ticket.ID,
		After: map[string]any{
			"status":      ticket.Status,
			"assignee_id": derefOrNil(ticket.AssigneeID),
		},
	})
}

// StatusChanged records a status edge.
func (t *Trail) StatusChanged(ctx context.Context, w repository.AuditAppender, ticketID, actorID string, before, after domain.TicketStatus) error {
	return t.Append(ctx, w, domain.AuditEntityTicket, ticketID, domain.AuditActionStatusChanged, actorID, domain.AuditMetadata{
		TicketID: ticketID,
		Before:   map[string]any{"status": before},
		After:    map[string]any{"status": after},
	})
}

// AssigneeChanged records an assignment change; nil means unassigned.
func (t *Trail) AssigneeChanged(ctx context.Context, w repository.AuditAppender, ticketID, actorID string, before, after *string) error {
	return t.Append(ctx, w, domain.AuditEntityTicket, ticketID, domain.AuditActionAssigneeChanged, actorID, domain.AuditMetadata{
		TicketID: ticketID,
		Before:   map[string]any{"assignee_id": derefOrNil(before)},
		After:    map[string]any{"assignee_id": derefOrNil(after)},
	})
}

// MessageCreated records a new thread entry. Content is not copied into the log.
func (t *Trail) MessageCreated(ctx context.Context, w repository.AuditAppender, msg *domain.TicketMessage) error {
	return t.Append(ctx, w, domain.AuditEntityTicketMessage, msg.ID, domain.AuditActionMessageCreated, msg.AuthorID, domain.AuditMetadata{
		TicketID: msg.TicketID,
		Message:  &domain.AuditMessageRef{ID: msg.ID, IsInternal: msg.IsInternal},
	})
}

func derefOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
