package service

import (
	"context"
	"strings"
	"time"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/events"
	"github.com/supportdesk/ticketflow/internal/policy"
	"github.com/supportdesk/ticketflow/internal/repository"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// PostMessage appends a public message. A customer may only reply while
// the ticket waits on them, and that reply moves it back to InProgress.
// Agents and admins post without changing the status.
func (s *TicketService) PostMessage(ctx context.Context, actor domain.Actor, ticketID, content string) (msg *domain.TicketMessage, ticket *domain.Ticket, err error) {
	defer s.record(policy.OpPostMessage, &err)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil, apperrors.NewValidationError("content must not be empty", nil)
	}
	if !policy.HasAuthority(actor.Role, policy.OpPostMessage) {
		return nil, nil, apperrors.NewForbidden()
	}
	current, err := s.loadWritable(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}

	cond := versionOf(current)
	var patch repository.TicketPatch
	if actor.Role == domain.RoleCustomer {
		to := domain.TicketStatusInProgress
		if !policy.Permits(actor.Role, policy.OpPostMessage, current.Status, to) {
			return nil, nil, apperrors.NewInvalidTransition("customers can reply only while the ticket is waiting for them", map[string]any{"status": current.Status})
		}
		from := current.Status
		cond.Status = &from
		patch.Status = &to
	} else if !policy.Permits(actor.Role, policy.OpPostMessage, current.Status, policy.NoChange) {
		return nil, nil, apperrors.NewForbidden()
	}

	msg, ticket, err = s.appendMessage(ctx, actor, current, cond, patch, content, false)
	if err != nil {
		return nil, nil, err
	}

	s.committed(policy.OpPostMessage, ticket.ID, actor)
	s.publish(ctx, events.New(events.EventTicketMessageAdded, ticket.ID, actor, msg.CreatedAt, events.MessagePayload(msg)))
	if ticket.Status != current.Status {
		s.publishStatusChange(ctx, actor, ticket, current.Status)
	}
	return msg, ticket, nil
}

// PostInternalNote appends a staff-only message. Agents must hold the ticket.
func (s *TicketService) PostInternalNote(ctx context.Context, actor domain.Actor, ticketID, content string) (msg *domain.TicketMessage, err error) {
	defer s.record(policy.OpPostInternalNote, &err)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content must not be empty", nil)
	}
	if !policy.HasAuthority(actor.Role, policy.OpPostInternalNote) {
		return nil, apperrors.NewForbidden()
	}
	current, err := s.loadWritable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleAgent && !current.IsAssignedTo(actor.ID) {
		return nil, apperrors.NewForbidden()
	}

	msg, ticket, err := s.appendMessage(ctx, actor, current, versionOf(current), repository.TicketPatch{}, content, true)
	if err != nil {
		return nil, err
	}

	s.committed(policy.OpPostInternalNote, ticket.ID, actor)
	s.publish(ctx, events.New(events.EventTicketMessageAdded, ticket.ID, actor, msg.CreatedAt, events.MessagePayload(msg)))
	return msg, nil
}

// appendMessage bumps the ticket version under cond and writes the message
// with its audit entries in the same transaction.
func (s *TicketService) appendMessage(
	ctx context.Context,
	actor domain.Actor,
	current *domain.Ticket,
	cond repository.TicketCondition,
	patch repository.TicketPatch,
	content string,
	internal bool,
) (*domain.TicketMessage, *domain.Ticket, error) {
	var msg *domain.TicketMessage
	ticket, err := s.writeTicket(ctx, current, cond, patch, func(ctx context.Context, tx repository.Tx, at time.Time) error {
		msg = &domain.TicketMessage{
			ID:         s.newID(),
			TicketID:   current.ID,
			AuthorID:   actor.ID,
			AuthorRole: actor.Role,
			Content:    content,
			IsInternal: internal,
			CreatedAt:  at,
		}
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}
		if err := s.trail.MessageCreated(ctx, tx.Audit(), msg); err != nil {
			return err
		}
		if patch.Status == nil {
			return nil
		}
		return s.trail.StatusChanged(ctx, tx.Audit(), current.ID, actor.ID, current.Status, *patch.Status)
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, ticket, nil
}
