package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedTicket(t *testing.T, s *Store, id string, updatedAt time.Time) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Tickets().Create(ctx, &domain.Ticket{
			ID:         id,
			Title:      "Cannot log in",
			Category:   domain.TicketCategoryAccount,
			Status:     domain.TicketStatusOpen,
			CustomerID: "c1",
			CreatedAt:  t0,
			UpdatedAt:  updatedAt,
		})
	})
	require.NoError(t, err)
}

func TestUpdateIfAppliesOnlyWhenConditionHolds(t *testing.T) {
	s := NewStore()
	seedTicket(t, s, "t1", t0)
	agent := "a1"
	open := domain.TicketStatusOpen
	inProgress := domain.TicketStatusInProgress

	take := func() int64 {
		var affected int64
		err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			var err error
			affected, err = tx.Tickets().UpdateIf(ctx,
				repository.TicketCondition{ID: "t1", Status: &open, Assignee: repository.Unassigned()},
				repository.TicketPatch{Status: &inProgress, Assignee: repository.Assignee(&agent), UpdatedAt: t0.Add(time.Second)})
			return err
		})
		require.NoError(t, err)
		return affected
	}

	assert.EqualValues(t, 1, take())
	assert.EqualValues(t, 0, take())

	got, err := s.Tickets().GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
	assert.True(t, got.IsAssignedTo("a1"))
}

func TestRolledBackTransactionLeavesNoTrace(t *testing.T) {
	s := NewStore()
	boom := errors.New("abort")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Tickets().Create(ctx, &domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, UpdatedAt: t0}))
		require.NoError(t, tx.Audit().Append(ctx, &domain.AuditLogEntry{ID: "e1", EntityID: "t1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Tickets().GetByID(context.Background(), "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, total, err := s.AuditLog().List(context.Background(), repository.AuditFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestFailNextCommitsDiscardsWritesAndIsTransient(t *testing.T) {
	s := NewStore()
	s.FailNextCommits(1)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Tickets().Create(ctx, &domain.Ticket{ID: "t1", Status: domain.TicketStatusOpen, UpdatedAt: t0})
	})
	require.Error(t, err)
	assert.True(t, s.IsTransient(err))

	_, err = s.Tickets().GetByID(context.Background(), "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	seedTicket(t, s, "t1", t0)
}

func TestReadsReturnCopies(t *testing.T) {
	s := NewStore()
	seedTicket(t, s, "t1", t0)

	got, err := s.Tickets().GetByID(context.Background(), "t1")
	require.NoError(t, err)
	got.Status = domain.TicketStatusClosed

	again, err := s.Tickets().GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, again.Status)
}

func TestListOrdersByUpdatedAtAndPages(t *testing.T) {
	s := NewStore()
	seedTicket(t, s, "old", t0)
	seedTicket(t, s, "new", t0.Add(2*time.Hour))
	seedTicket(t, s, "mid", t0.Add(time.Hour))

	items, total, err := s.Tickets().List(context.Background(), repository.TicketFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "mid", items[1].ID)

	items, _, err = s.Tickets().List(context.Background(), repository.TicketFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].ID)
}

func TestAuditMetadataRoundTripsThroughJSON(t *testing.T) {
	s := NewStore()
	seedTicket(t, s, "t1", t0)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Audit().Append(ctx, &domain.AuditLogEntry{
			ID:         "e1",
			EntityType: domain.AuditEntityTicket,
			EntityID:   "t1",
			Action:     domain.AuditActionStatusChanged,
			ActorID:    "a1",
			Metadata: domain.AuditMetadata{
				TicketID: "t1",
				Before:   map[string]any{"status": domain.TicketStatusOpen},
				After:    map[string]any{"status": domain.TicketStatusInProgress},
			},
			CreatedAt: t0,
		})
	})
	require.NoError(t, err)

	entries, total, err := s.AuditLog().List(context.Background(), repository.AuditFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "OPEN", entries[0].Metadata.Before["status"])
	assert.Equal(t, "IN_PROGRESS", entries[0].Metadata.After["status"])
}

func TestUserDirectory(t *testing.T) {
	s := NewStore()
	s.PutUser(domain.DirectoryUser{ID: "a1", Role: domain.RoleAgent, Active: true})

	user, err := s.Users().GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, user.Role)

	_, err = s.Users().GetByID(context.Background(), "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
