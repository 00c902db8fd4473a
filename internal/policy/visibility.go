package policy

import (
	"github.com/supportdesk/ticketflow/internal/domain"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// IsVisible reports whether actor may observe ticket at all.
//
// Admins see everything, customers see their own tickets, and agents see
// unassigned tickets plus the ones assigned to them.
func IsVisible(actor domain.Actor, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return ticket.CustomerID == actor.ID
	case domain.RoleAgent:
		return ticket.AssigneeID == nil || *ticket.AssigneeID == actor.ID
	default:
		return false
	}
}

// AssertVisibleOrNotFound returns NOT_FOUND, never FORBIDDEN, for tickets
// the actor cannot see, so existence does not leak.
func AssertVisibleOrNotFound(actor domain.Actor, ticket *domain.Ticket) error {
	if !IsVisible(actor, ticket) {
		return apperrors.NewNotFound("ticket")
	}
	return nil
}

// VisibleMessages projects a thread for actor. Customers never receive
// internal notes.
func VisibleMessages(actor domain.Actor, messages []domain.TicketMessage) []domain.TicketMessage {
	if actor.Role != domain.RoleCustomer {
		return messages
	}
	filtered := make([]domain.TicketMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.IsInternal {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}
