package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/events"
	"github.com/supportdesk/ticketflow/internal/policy"
	"github.com/supportdesk/ticketflow/internal/repository"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// Take lets an agent claim an open, unassigned ticket. Of several agents
// racing for the same ticket exactly one wins; the rest get CONFLICT.
func (s *TicketService) Take(ctx context.Context, actor domain.Actor, ticketID string) (ticket *domain.Ticket, err error) {
	defer s.record(policy.OpTake, &err)

	if !policy.HasAuthority(actor.Role, policy.OpTake) {
		return nil, apperrors.NewForbidden()
	}
	current, err := s.loadWritable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.TicketStatusOpen || current.AssigneeID != nil {
		return nil, apperrors.NewConflict("ticket is no longer open for taking", map[string]any{"status": current.Status})
	}

	open := domain.TicketStatusOpen
	inProgress := domain.TicketStatusInProgress
	cond := versionOf(current)
	cond.Status = &open
	cond.Assignee = repository.Unassigned()
	patch := repository.TicketPatch{Status: &inProgress, Assignee: repository.Assignee(&actor.ID)}

	ticket, err = s.writeTicket(ctx, current, cond, patch, func(ctx context.Context, tx repository.Tx, _ time.Time) error {
		if err := s.trail.AssigneeChanged(ctx, tx.Audit(), current.ID, actor.ID, nil, &actor.ID); err != nil {
			return err
		}
		return s.trail.StatusChanged(ctx, tx.Audit(), current.ID, actor.ID, open, inProgress)
	})
	if err != nil {
		return nil, err
	}

	s.committed(policy.OpTake, ticket.ID, actor)
	s.publishAssignment(ctx, actor, ticket, nil)
	s.publishStatusChange(ctx, actor, ticket, open)
	return ticket, nil
}

// CancelTake releases a ticket the calling agent holds back to the queue.
func (s *TicketService) CancelTake(ctx context.Context, actor domain.Actor, ticketID string) (ticket *domain.Ticket, err error) {
	defer s.record(policy.OpCancelTake, &err)

	if !policy.HasAuthority(actor.Role, policy.OpCancelTake) {
		return nil, apperrors.NewForbidden()
	}
	current, err := s.loadWritable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.TicketStatusInProgress || !current.IsAssignedTo(actor.ID) {
		return nil, apperrors.NewInvalidTransition("only the assignee can release an in-progress ticket", map[string]any{"status": current.Status})
	}

	open := domain.TicketStatusOpen
	inProgress := domain.TicketStatusInProgress
	cond := versionOf(current)
	cond.Status = &inProgress
	cond.Assignee = repository.Assignee(&actor.ID)
	patch := repository.TicketPatch{Status: &open, Assignee: repository.Unassigned()}

	ticket, err = s.writeTicket(ctx, current, cond, patch, func(ctx context.Context, tx repository.Tx, _ time.Time) error {
		if err := s.trail.AssigneeChanged(ctx, tx.Audit(), current.ID, actor.ID, &actor.ID, nil); err != nil {
			return err
		}
		return s.trail.StatusChanged(ctx, tx.Audit(), current.ID, actor.ID, inProgress, open)
	})
	if err != nil {
		return nil, err
	}

	s.committed(policy.OpCancelTake, ticket.ID, actor)
	s.publishAssignment(ctx, actor, ticket, current.AssigneeID)
	s.publishStatusChange(ctx, actor, ticket, inProgress)
	return ticket, nil
}

// Reassign sets or clears the assignee as an admin. Assigning an open
// ticket starts it and unassigning an in-progress ticket reopens it; any
// other status is left as is.
func (s *TicketService) Reassign(ctx context.Context, actor domain.Actor, ticketID string, assigneeID *string) (ticket *domain.Ticket, err error) {
	defer s.record(policy.OpReassign, &err)

	if !policy.HasAuthority(actor.Role, policy.OpReassign) {
		return nil, apperrors.NewForbidden()
	}
	if assigneeID != nil {
		trimmed := strings.TrimSpace(*assigneeID)
		if trimmed == "" {
			return nil, apperrors.NewValidationError("assignee_id must not be empty", nil)
		}
		assigneeID = &trimmed
	}
	current, err := s.loadWritable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if assigneeID != nil {
		if err := s.checkAssignable(ctx, *assigneeID); err != nil {
			return nil, err
		}
	}

	from := current.Status
	to := inferAssignmentStatus(from, assigneeID)
	if to != from && !policy.Permits(actor.Role, policy.OpReassign, from, to) {
		return nil, apperrors.NewForbidden()
	}

	patch := repository.TicketPatch{Assignee: repository.Assignee(assigneeID)}
	if to != from {
		patch.Status = &to
	}

	ticket, err = s.writeTicket(ctx, current, versionOf(current), patch, func(ctx context.Context, tx repository.Tx, _ time.Time) error {
		if err := s.trail.AssigneeChanged(ctx, tx.Audit(), current.ID, actor.ID, current.AssigneeID, assigneeID); err != nil {
			return err
		}
		if to == from {
			return nil
		}
		return s.trail.StatusChanged(ctx, tx.Audit(), current.ID, actor.ID, from, to)
	})
	if err != nil {
		return nil, err
	}

	s.committed(policy.OpReassign, ticket.ID, actor)
	s.publishAssignment(ctx, actor, ticket, current.AssigneeID)
	if to != from {
		s.publishStatusChange(ctx, actor, ticket, from)
	}
	return ticket, nil
}

// inferAssignmentStatus couples Open and InProgress to assignee presence.
// Other statuses keep their value when the assignee changes.
func inferAssignmentStatus(from domain.TicketStatus, assigneeID *string) domain.TicketStatus {
	switch {
	case from == domain.TicketStatusOpen && assigneeID != nil:
		return domain.TicketStatusInProgress
	case from == domain.TicketStatusInProgress && assigneeID == nil:
		return domain.TicketStatusOpen
	default:
		return from
	}
}

// checkAssignable resolves the target through the user directory. Unknown
// and disabled accounts look the same to the caller.
func (s *TicketService) checkAssignable(ctx context.Context, assigneeID string) error {
	user, err := s.store.Users().GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("assignee")
		}
		return apperrors.MapError(err)
	}
	if !user.Active {
		return apperrors.NewNotFound("assignee")
	}
	if user.Role != domain.RoleAgent {
		return apperrors.NewValidationError("assignee must be an agent", map[string]any{"assignee_id": assigneeID})
	}
	return nil
}

func (s *TicketService) publishAssignment(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, previous *string) {
	s.publish(ctx, events.New(events.EventTicketAssigned, ticket.ID, actor, ticket.UpdatedAt, events.TicketAssignedPayload{
		PreviousAssigneeID: previous,
		AssigneeID:         ticket.AssigneeID,
	}))
}
