package policy

import (
	"fmt"

	"github.com/supportdesk/ticketflow/internal/domain"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// allowedTransitions holds the structurally legal edges, independent of who
// performs them. Closed has no outgoing edges.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:               {domain.TicketStatusInProgress},
	domain.TicketStatusInProgress:         {domain.TicketStatusWaitingForCustomer, domain.TicketStatusResolved, domain.TicketStatusOpen},
	domain.TicketStatusWaitingForCustomer: {domain.TicketStatusInProgress},
	domain.TicketStatusResolved:           {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:             {},
}

// AllowedTransitions returns a copy of the targets reachable from from.
func AllowedTransitions(from domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus(nil), allowedTransitions[from]...)
}

// IsValidTransition reports whether from -> to is a structural edge.
func IsValidTransition(from, to domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition fails with CLOSED_FINAL when leaving Closed and with
// INVALID_TRANSITION for any other edge missing from the table.
func ValidateTransition(from, to domain.TicketStatus) error {
	if from == domain.TicketStatusClosed {
		return apperrors.NewClosedFinal()
	}
	if !IsValidTransition(from, to) {
		return apperrors.NewInvalidTransition(
			fmt.Sprintf("invalid transition: %s -> %s", from, to),
			map[string]any{"from": from, "to": to},
		)
	}
	return nil
}
