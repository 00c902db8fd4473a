package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/audit"
	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/events"
	"github.com/supportdesk/ticketflow/internal/policy"
	"github.com/supportdesk/ticketflow/internal/repository"
	"github.com/supportdesk/ticketflow/internal/txguard"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// OperationRecorder receives the outcome of every workflow operation.
type OperationRecorder interface {
	RecordOperation(operation string, err error)
}

// TicketService is the ticket workflow engine. Every mutating operation
// loads the ticket, checks visibility and role rules, then performs one
// conditional write plus its audit entries inside a guarded transaction.
type TicketService struct {
	store      repository.Store
	guard      *txguard.Guard
	trail      *audit.Trail
	dispatcher events.Dispatcher
	metrics    OperationRecorder
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Guard      *txguard.Guard
	Trail      *audit.Trail
	Dispatcher events.Dispatcher
	Metrics    OperationRecorder
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Category    domain.TicketCategory
	Description string
}

// TicketListInput describes listing filters before role scoping.
type TicketListInput struct {
	Status *domain.TicketStatus
	View   repository.TicketView
	Limit  int
	Offset int
}

// AuditListInput describes audit log filters.
type AuditListInput struct {
	EntityType *domain.AuditEntityType
	EntityID   *string
	Limit      int
	Offset     int
}

// TicketDetail is a ticket with the part of its thread the caller may see.
type TicketDetail struct {
	Ticket   domain.Ticket
	Messages []domain.TicketMessage
}

// Page is one slice of a listing.
type Page[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := deps.Guard
	if guard == nil {
		guard = txguard.New(deps.Store, txguard.DefaultPolicy(), logger)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	trail := deps.Trail
	if trail == nil {
		trail = audit.NewTrailWithClock(clock)
	}
	return &TicketService{
		store:      deps.Store,
		guard:      guard,
		trail:      trail,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
		newID:      uuid.NewString,
	}
}

// CreateTicket opens a ticket for a customer together with its first message.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (ticket *domain.Ticket, first *domain.TicketMessage, err error) {
	defer s.record(policy.OpCreateTicket, &err)

	if !policy.HasAuthority(actor.Role, policy.OpCreateTicket) {
		return nil, nil, apperrors.NewForbidden()
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	category := domain.TicketCategory(strings.ToUpper(strings.TrimSpace(string(input.Category))))
	if err := validateCreate(title, description, category); err != nil {
		return nil, nil, err
	}

	err = s.guard.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		at := domain.NextVersion(time.Time{}, s.now())
		ticket = &domain.Ticket{
			ID:         s.newID(),
			Title:      title,
			Category:   category,
			Status:     domain.TicketStatusOpen,
			CustomerID: actor.ID,
			CreatedAt:  at,
			UpdatedAt:  at,
		}
		first = &domain.TicketMessage{
			ID:         s.newID(),
			TicketID:   ticket.ID,
			AuthorID:   actor.ID,
			AuthorRole: actor.Role,
			Content:    description,
			CreatedAt:  at,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		if err := tx.Messages().Create(ctx, first); err != nil {
			return err
		}
		if err := s.trail.TicketCreated(ctx, tx.Audit(), ticket, actor.ID); err != nil {
			return err
		}
		return s.trail.MessageCreated(ctx, tx.Audit(), first)
	})
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	s.committed(policy.OpCreateTicket, ticket.ID, actor)
	s.publish(ctx, events.New(events.EventTicketCreated, ticket.ID, actor, ticket.CreatedAt, events.TicketCreatedPayload{
		Title:      ticket.Title,
		Category:   ticket.Category,
		CustomerID: ticket.CustomerID,
	}))
	s.publish(ctx, events.New(events.EventTicketMessageAdded, ticket.ID, actor, first.CreatedAt, events.MessagePayload(first)))
	return ticket, first, nil
}

func validateCreate(title, description string, category domain.TicketCategory) error {
	details := map[string]any{}
	if n := utf8.RuneCountInString(title); n == 0 || n > domain.MaxTitleLength {
		details["title"] = "must be between 1 and 100 characters"
	}
	if description == "" {
		details["description"] = "must not be empty"
	}
	if !category.Valid() {
		details["category"] = "must be one of ACCOUNT, BILLING, TECHNICAL, OTHER"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

// ChangeStatus moves a ticket along a generic status edge. from is the
// status the caller believes the ticket is in.
func (s *TicketService) ChangeStatus(ctx context.Context, actor domain.Actor, ticketID string, from, to domain.TicketStatus) (ticket *domain.Ticket, err error) {
	defer s.record(policy.OpChangeStatus, &err)

	if !from.Valid() || !to.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"from": from, "to": to})
	}
	current, err := s.loadWritable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.ValidateTransition(from, to); err != nil {
		return nil, err
	}
	if op, dedicated := policy.DedicatedOperation(from, to); dedicated {
		return nil, apperrors.NewInvalidTransition("transition is performed by "+string(op), map[string]any{"from": from, "to": to})
	}
	if current.Status != from {
		return nil, apperrors.NewConflict("ticket status changed; reload and retry", map[string]any{"current": current.Status})
	}
	if !policy.HasAuthority(actor.Role, policy.OpChangeStatus) {
		return nil, apperrors.NewForbidden()
	}
	if actor.Role == domain.RoleAgent && !current.IsAssignedTo(actor.ID) {
		return nil, apperrors.NewForbidden()
	}
	if !policy.Permits(actor.Role, policy.OpChangeStatus, from, to) {
		return nil, apperrors.NewInvalidTransition("role may not perform this transition", map[string]any{"from": from, "to": to})
	}

	cond := versionOf(current)
	cond.Status = &from
	if actor.Role == domain.RoleAgent {
		cond.Assignee = repository.Assignee(&actor.ID)
	}
	patch := repository.TicketPatch{Status: &to}

	ticket, err = s.writeTicket(ctx, current, cond, patch, func(ctx context.Context, tx repository.Tx, at time.Time) error {
		return s.trail.StatusChanged(ctx, tx.Audit(), current.ID, actor.ID, from, to)
	})
	if err != nil {
		return nil, err
	}

	s.committed(policy.OpChangeStatus, ticket.ID, actor)
	s.publishStatusChange(ctx, actor, ticket, from)
	return ticket, nil
}

// GetTicket returns the ticket and the messages the actor may read.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.Messages().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketDetail{Ticket: *ticket, Messages: policy.VisibleMessages(actor, messages)}, nil
}

// ListTickets lists the tickets the actor may see, newest activity first.
// Customers see their own tickets, agents either the unassigned queue or
// their own work, admins everything.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input TicketListInput) (*Page[domain.Ticket], error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
	}
	if input.Offset < 0 {
		return nil, apperrors.NewValidationError("offset must not be negative", nil)
	}
	filter := repository.TicketFilter{
		Status: input.Status,
		Limit:  repository.NormalizeLimit(input.Limit),
		Offset: input.Offset,
	}

	switch actor.Role {
	case domain.RoleCustomer:
		filter.CustomerID = &actor.ID
	case domain.RoleAgent, domain.RoleAdmin:
		view := input.View
		if view == "" && actor.Role == domain.RoleAgent {
			view = repository.TicketViewUnassigned
		}
		switch view {
		case "":
		case repository.TicketViewUnassigned:
			filter.Unassigned = true
		case repository.TicketViewMine:
			filter.AssigneeID = &actor.ID
		default:
			return nil, apperrors.NewValidationError("unknown view", map[string]any{"view": view})
		}
	default:
		return nil, apperrors.NewForbidden()
	}

	items, total, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Page[domain.Ticket]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// ListAuditLog is the administrative view over the audit trail.
func (s *TicketService) ListAuditLog(ctx context.Context, actor domain.Actor, input AuditListInput) (*Page[domain.AuditLogEntry], error) {
	if !policy.HasAuthority(actor.Role, policy.OpListAuditLog) {
		return nil, apperrors.NewForbidden()
	}
	if input.Offset < 0 {
		return nil, apperrors.NewValidationError("offset must not be negative", nil)
	}
	if input.EntityType != nil {
		switch *input.EntityType {
		case domain.AuditEntityTicket, domain.AuditEntityTicketMessage:
		default:
			return nil, apperrors.NewValidationError("unknown entity type", map[string]any{"entity_type": *input.EntityType})
		}
	}
	filter := repository.AuditFilter{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Limit:      repository.NormalizeLimit(input.Limit),
		Offset:     input.Offset,
	}
	items, total, err := s.store.AuditLog().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Page[domain.AuditLogEntry]{Items: items, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// loadVisible reads a ticket and hides it from actors who may not see it.
func (s *TicketService) loadVisible(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperrors.NewNotFound("ticket")
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, apperrors.MapError(err)
	}
	if err := policy.AssertVisibleOrNotFound(actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// loadWritable is loadVisible plus the terminal-state check.
func (s *TicketService) loadWritable(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewClosedFinal()
	}
	return ticket, nil
}

// versionOf pins a conditional write to the state that was read.
func versionOf(ticket *domain.Ticket) repository.TicketCondition {
	version := ticket.UpdatedAt
	return repository.TicketCondition{ID: ticket.ID, UpdatedAt: &version}
}

// writeTicket applies patch under cond in a guarded transaction, runs
// after with the same transaction and write time, and returns the
// resulting ticket.
func (s *TicketService) writeTicket(
	ctx context.Context,
	current *domain.Ticket,
	cond repository.TicketCondition,
	patch repository.TicketPatch,
	after func(ctx context.Context, tx repository.Tx, at time.Time) error,
) (*domain.Ticket, error) {
	var updated domain.Ticket
	err := s.guard.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		p := patch
		p.UpdatedAt = domain.NextVersion(current.UpdatedAt, s.now())
		if p.Status != nil && *p.Status == domain.TicketStatusClosed {
			closedAt := p.UpdatedAt
			p.ClosedAt = &closedAt
		}
		affected, err := tx.Tickets().UpdateIf(ctx, cond, p)
		if err != nil {
			return err
		}
		if err := txguard.ExpectOne(affected); err != nil {
			return err
		}
		updated = p.Apply(*current)
		if after == nil {
			return nil
		}
		return after(ctx, tx, p.UpdatedAt)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &updated, nil
}

func (s *TicketService) record(op policy.Operation, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOperation(string(op), *err)
}

func (s *TicketService) committed(op policy.Operation, ticketID string, actor domain.Actor) {
	s.logger.Debug("workflow write committed",
		zap.String("operation", string(op)),
		zap.String("ticket_id", ticketID),
		zap.String("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)))
}

func (s *TicketService) publishStatusChange(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, from domain.TicketStatus) {
	s.publish(ctx, events.New(events.EventTicketStatusChanged, ticket.ID, actor, ticket.UpdatedAt, events.TicketStatusChangedPayload{
		OldStatus: from,
		NewStatus: ticket.Status,
	}))
}

// publish hands a committed change to the dispatcher. Failures never reach
// the caller: the write already happened.
func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
