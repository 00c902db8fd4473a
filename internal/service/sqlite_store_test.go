package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/config"
	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/persistence"
	"github.com/supportdesk/ticketflow/internal/repository"
	"github.com/supportdesk/ticketflow/internal/repository/sqlite"
	"github.com/supportdesk/ticketflow/internal/txguard"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

func newSQLiteService(t *testing.T) (*TicketService, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.NewSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "flow.db"), BusyTimeoutMS: 5000}, zap.NewNop())
	require.NoError(t, err)
	store := sqlite.NewStore(db)
	t.Cleanup(func() { _ = store.Close() })

	for _, user := range []domain.DirectoryUser{
		{ID: agent1.ID, Email: "a1@example.com", Role: domain.RoleAgent, Active: true},
		{ID: agent2.ID, Email: "a2@example.com", Role: domain.RoleAgent, Active: true},
	} {
		require.NoError(t, store.PutUser(ctx, user))
	}

	guard := txguard.New(store, txguard.Policy{MaxAttempts: 5, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond}, zap.NewNop())
	return NewTicketService(TicketDependencies{Store: store, Guard: guard}), store
}

func TestSQLiteScenario(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()

	ticket, _, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Title: "VPN drops", Category: "TECHNICAL", Description: "Every ten minutes."})
	require.NoError(t, err)

	_, err = svc.Take(ctx, agent1, ticket.ID)
	require.NoError(t, err)
	_, err = svc.Take(ctx, agent2, ticket.ID)
	assertCode(t, err, apperrors.CodeNotFound)
	_, err = svc.CancelTake(ctx, agent1, ticket.ID)
	require.NoError(t, err)

	reassigned, err := svc.Reassign(ctx, admin, ticket.ID, &agent1.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, reassigned.Status)

	stored, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, *reassigned, *stored, "returned ticket matches the committed row")

	_, err = svc.PostInternalNote(ctx, agent1, ticket.ID, "suspect MTU")
	require.NoError(t, err)
	detail, err := svc.GetTicket(ctx, customer, ticket.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 1)
	assert.False(t, detail.Messages[0].IsInternal)

	entityType := domain.AuditEntityTicket
	entries, _, err := store.AuditLog().List(ctx, repository.AuditFilter{EntityType: &entityType, EntityID: &ticket.ID, Limit: 100})
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestSQLiteConcurrentTake(t *testing.T) {
	svc, store := newSQLiteService(t)
	ctx := context.Background()
	ticket, _, err := svc.CreateTicket(ctx, customer, TicketCreateInput{Title: "Refund", Category: "BILLING", Description: "Please."})
	require.NoError(t, err)

	const racers = 6
	results := make([]error, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			actor := domain.Actor{ID: "racer-" + string(rune('a'+i)), Role: domain.RoleAgent}
			_, results[i] = svc.Take(ctx, actor, ticket.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		// Racers that read after the winner committed no longer see the ticket.
		code := apperrors.ToDomainError(err).Code
		assert.Contains(t, []string{apperrors.CodeConflict, apperrors.CodeNotFound}, code, "error: %v", err)
	}
	assert.Equal(t, 1, winners)

	final, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, final.Status)
	require.NotNil(t, final.AssigneeID)
}
