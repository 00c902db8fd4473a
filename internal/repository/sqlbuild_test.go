package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/supportdesk/ticketflow/internal/domain"
)

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func strPtr(s string) *string { return &s }

func TestBuildTicketUpdateTake(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC)
	query, args := BuildTicketUpdate(PostgresDialect,
		TicketCondition{ID: "t1", Status: statusPtr(domain.TicketStatusOpen), Assignee: Unassigned()},
		TicketPatch{Status: statusPtr(domain.TicketStatusInProgress), Assignee: Assignee(strPtr("a1")), UpdatedAt: now},
	)

	assert.Equal(t,
		"UPDATE tickets SET status = $1, assignee_id = $2, updated_at = $3 WHERE id = $4 AND status = $5 AND assignee_id IS NULL",
		query)
	assert.Equal(t, []any{"IN_PROGRESS", "a1", now, "t1", "OPEN"}, args)
}

func TestBuildTicketUpdateVersionedUnassign(t *testing.T) {
	prev := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	next := prev.Add(time.Second)
	query, args := BuildTicketUpdate(SQLiteDialect,
		TicketCondition{ID: "t1", UpdatedAt: &prev},
		TicketPatch{Status: statusPtr(domain.TicketStatusOpen), Assignee: Unassigned(), UpdatedAt: next},
	)

	assert.Equal(t,
		"UPDATE tickets SET status = ?, assignee_id = ?, updated_at = ? WHERE id = ? AND updated_at = ?",
		query)
	assert.Equal(t, []any{"OPEN", nil, next.UnixMicro(), "t1", prev.UnixMicro()}, args)
}

func TestBuildTicketUpdateClosedAtAndAssigneeMatch(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	query, args := BuildTicketUpdate(PostgresDialect,
		TicketCondition{ID: "t1", Status: statusPtr(domain.TicketStatusResolved), Assignee: Assignee(strPtr("a1"))},
		TicketPatch{Status: statusPtr(domain.TicketStatusClosed), ClosedAt: &at, UpdatedAt: at},
	)

	assert.Equal(t,
		"UPDATE tickets SET status = $1, closed_at = $2, updated_at = $3 WHERE id = $4 AND status = $5 AND assignee_id = $6",
		query)
	assert.Len(t, args, 6)
}

func TestBuildTicketListWhere(t *testing.T) {
	where, args := BuildTicketListWhere(PostgresDialect, TicketFilter{
		CustomerID: strPtr("c1"),
		Status:     statusPtr(domain.TicketStatusResolved),
	})
	assert.Equal(t, "1=1 AND customer_id = $1 AND status = $2", where)
	assert.Equal(t, []any{"c1", "RESOLVED"}, args)

	where, args = BuildTicketListWhere(SQLiteDialect, TicketFilter{Unassigned: true})
	assert.Equal(t, "1=1 AND assignee_id IS NULL", where)
	assert.Empty(t, args)
}

func TestPageClause(t *testing.T) {
	assert.Equal(t, "LIMIT 50 OFFSET 0", PageClause(0, -3))
	assert.Equal(t, "LIMIT 100 OFFSET 10", PageClause(500, 10))
	assert.Equal(t, "LIMIT 7 OFFSET 0", PageClause(7, 0))
}

func TestConditionAndPatchInMemory(t *testing.T) {
	updated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticket := domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, UpdatedAt: updated}

	cond := TicketCondition{ID: "t1", Status: statusPtr(domain.TicketStatusOpen), Assignee: Unassigned(), UpdatedAt: &updated}
	assert.True(t, cond.Matches(ticket))

	patched := TicketPatch{
		Status:    statusPtr(domain.TicketStatusInProgress),
		Assignee:  Assignee(strPtr("a1")),
		UpdatedAt: updated.Add(time.Second),
	}.Apply(ticket)

	assert.False(t, cond.Matches(patched))
	assert.Equal(t, domain.TicketStatusInProgress, patched.Status)
	assert.Equal(t, "a1", *patched.AssigneeID)
	assert.Nil(t, ticket.AssigneeID)

	assert.True(t, TicketCondition{ID: "t1", Assignee: Assignee(strPtr("a1"))}.Matches(patched))
	assert.False(t, TicketCondition{ID: "t1", Assignee: Assignee(strPtr("a2"))}.Matches(patched))
	assert.False(t, TicketCondition{ID: "t2"}.Matches(patched))
}
