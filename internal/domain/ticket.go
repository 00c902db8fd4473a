package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "OPEN"
	TicketStatusInProgress         TicketStatus = "IN_PROGRESS"
	TicketStatusWaitingForCustomer TicketStatus = "WAITING_FOR_CUSTOMER"
	TicketStatusResolved           TicketStatus = "RESOLVED"
	TicketStatusClosed             TicketStatus = "CLOSED"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusWaitingForCustomer,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketCategory is the closed set of ticket categories.
type TicketCategory string

const (
	TicketCategoryAccount   TicketCategory = "ACCOUNT"
	TicketCategoryBilling   TicketCategory = "BILLING"
	TicketCategoryTechnical TicketCategory = "TECHNICAL"
	TicketCategoryOther     TicketCategory = "OTHER"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryAccount, TicketCategoryBilling, TicketCategoryTechnical, TicketCategoryOther:
		return true
	}
	return false
}

// MaxTitleLength bounds ticket titles, counted in runes.
const MaxTitleLength = 100

// Ticket is the aggregate for support requests.
//
// UpdatedAt doubles as the optimistic-concurrency version token: every
// successful write moves it strictly forward.
type Ticket struct {
	ID         string
	Title      string
	Category   TicketCategory
	Status     TicketStatus
	CustomerID string
	AssigneeID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// IsAssignedTo reports whether actorID is the current assignee.
func (t *Ticket) IsAssignedTo(actorID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == actorID
}

// Clone returns a deep copy safe to mutate.
func (t Ticket) Clone() Ticket {
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		t.AssigneeID = &id
	}
	if t.ClosedAt != nil {
		at := *t.ClosedAt
		t.ClosedAt = &at
	}
	return t
}

// VersionPrecision is the resolution every store keeps for timestamps.
const VersionPrecision = time.Microsecond

// NextVersion returns the UpdatedAt value for a write following prev.
// The result is truncated to VersionPrecision and always after prev, even
// when the wall clock stalls or steps backwards.
func NextVersion(prev, now time.Time) time.Time {
	next := now.UTC().Truncate(VersionPrecision)
	floor := prev.UTC().Truncate(VersionPrecision).Add(VersionPrecision)
	if next.Before(floor) {
		return floor
	}
	return next
}
