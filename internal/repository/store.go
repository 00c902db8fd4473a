package repository

import (
	"context"
	"errors"
	"time"

	"github.com/supportdesk/ticketflow/internal/domain"
)

// ErrNotFound is returned by every store when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store is the durable record store the workflow engine runs on. Reads
// outside a transaction go through the reader accessors; every write goes
// through WithinTx.
type Store interface {
	// WithinTx runs fn in one transaction. A nil return commits; any error
	// rolls back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// IsTransient reports whether err is momentary storage contention that
	// is safe to retry with a fresh transaction.
	IsTransient(err error) bool

	Tickets() TicketReader
	Messages() TicketMessageReader
	AuditLog() AuditReader
	Users() UserDirectory

	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes the writers bound to one transaction.
type Tx interface {
	Tickets() TicketRepository
	Messages() TicketMessageRepository
	Audit() AuditAppender
}

// TicketReader is the non-transactional read path for tickets.
type TicketReader interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
}

// TicketRepository encapsulates ticket persistence inside a transaction.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	// UpdateIf applies patch only when the row still matches cond and
	// returns the number of rows changed. Callers treat anything but 1 as a
	// lost race.
	UpdateIf(ctx context.Context, cond TicketCondition, patch TicketPatch) (int64, error)
}

// TicketMessageReader lists a ticket thread, oldest first.
type TicketMessageReader interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

// TicketMessageRepository appends messages inside a transaction.
type TicketMessageRepository interface {
	Create(ctx context.Context, msg *domain.TicketMessage) error
}

// AuditAppender is the only write entry point to the audit log. There is
// deliberately no update or delete counterpart anywhere in this package.
type AuditAppender interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
}

// AuditReader serves administrative queries over the audit log.
type AuditReader interface {
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditLogEntry, int, error)
}

// UserDirectory resolves accounts owned by the identity system.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.DirectoryUser, error)
}

// AssigneeRef is an optional assignee value: Set=false means "not part of
// this condition or patch", Set=true with a nil ID means "no assignee".
type AssigneeRef struct {
	Set bool
	ID  *string
}

// Assignee builds a set AssigneeRef.
func Assignee(id *string) AssigneeRef {
	return AssigneeRef{Set: true, ID: id}
}

// Unassigned matches or sets a null assignee.
func Unassigned() AssigneeRef {
	return AssigneeRef{Set: true}
}

// Matches reports whether value satisfies the reference.
func (r AssigneeRef) Matches(value *string) bool {
	if !r.Set {
		return true
	}
	if r.ID == nil || value == nil {
		return r.ID == nil && value == nil
	}
	return *r.ID == *value
}

// TicketCondition is the compare half of a compare-and-swap write.
type TicketCondition struct {
	ID        string
	Status    *domain.TicketStatus
	Assignee  AssigneeRef
	UpdatedAt *time.Time
}

// TicketPatch is the swap half. UpdatedAt is always written.
type TicketPatch struct {
	Status    *domain.TicketStatus
	Assignee  AssigneeRef
	ClosedAt  *time.Time
	UpdatedAt time.Time
}

// Apply returns ticket with patch applied.
func (p TicketPatch) Apply(ticket domain.Ticket) domain.Ticket {
	out := ticket.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Assignee.Set {
		if p.Assignee.ID == nil {
			out.AssigneeID = nil
		} else {
			id := *p.Assignee.ID
			out.AssigneeID = &id
		}
	}
	if p.ClosedAt != nil {
		at := *p.ClosedAt
		out.ClosedAt = &at
	}
	out.UpdatedAt = p.UpdatedAt
	return out
}

// Matches reports whether ticket satisfies every part of the condition.
func (c TicketCondition) Matches(ticket domain.Ticket) bool {
	if ticket.ID != c.ID {
		return false
	}
	if c.Status != nil && ticket.Status != *c.Status {
		return false
	}
	if !c.Assignee.Matches(ticket.AssigneeID) {
		return false
	}
	if c.UpdatedAt != nil && !ticket.UpdatedAt.Equal(*c.UpdatedAt) {
		return false
	}
	return true
}

// TicketView selects the slice of tickets an agent lists.
type TicketView string

const (
	TicketViewUnassigned TicketView = "unassigned"
	TicketViewMine       TicketView = "mine"
)

// TicketFilter captures list parameters after role scoping.
type TicketFilter struct {
	CustomerID *string
	AssigneeID *string
	Unassigned bool
	Status     *domain.TicketStatus
	Limit      int
	Offset     int
}

// AuditFilter captures audit log query parameters.
type AuditFilter struct {
	EntityType *domain.AuditEntityType
	EntityID   *string
	Limit      int
	Offset     int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// NormalizeLimit clamps a requested page size into [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
