package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/events"
)

func TestNotificationServiceRelaysToSinks(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	var delivered []events.EventType
	okSink := func(_ context.Context, e events.Event) error {
		delivered = append(delivered, e.Type)
		return nil
	}
	failing := func(context.Context, events.Event) error { return errors.New("redis down") }

	NewNotificationService(dispatcher, zap.New(core), okSink, failing).RegisterHandlers()

	msg := &domain.TicketMessage{ID: "m1", TicketID: "t1", AuthorRole: domain.RoleAgent, Content: "secret", IsInternal: true}
	assert.NoError(t, dispatcher.Publish(context.Background(), events.New(events.EventTicketMessageAdded, "t1", agent1, time.Now(), events.MessagePayload(msg))))
	assert.NoError(t, dispatcher.Publish(context.Background(), events.New(events.EventTicketStatusChanged, "t1", agent1, time.Now(), events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusInProgress,
		NewStatus: domain.TicketStatusResolved,
	})))

	assert.Equal(t, []events.EventType{events.EventTicketMessageAdded, events.EventTicketStatusChanged}, delivered)

	entries := logs.FilterMessage("TicketMessageAdded").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, true, fields["is_internal"])
		assert.NotContains(t, fields, "body_preview")
	}
	assert.Equal(t, 1, logs.FilterMessage("TicketStatusChanged").FilterField(zap.String("new_status", "RESOLVED")).Len())
}
