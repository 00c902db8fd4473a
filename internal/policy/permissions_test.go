package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/supportdesk/ticketflow/internal/domain"
)

func TestChangeStatusPermissionsByRole(t *testing.T) {
	granted := map[domain.Role][][2]domain.TicketStatus{
		domain.RoleCustomer: {
			{domain.TicketStatusResolved, domain.TicketStatusClosed},
		},
		domain.RoleAgent: {
			{domain.TicketStatusInProgress, domain.TicketStatusWaitingForCustomer},
			{domain.TicketStatusInProgress, domain.TicketStatusResolved},
			{domain.TicketStatusResolved, domain.TicketStatusInProgress},
		},
		domain.RoleAdmin: {
			{domain.TicketStatusResolved, domain.TicketStatusClosed},
			{domain.TicketStatusResolved, domain.TicketStatusInProgress},
			{domain.TicketStatusInProgress, domain.TicketStatusWaitingForCustomer},
			{domain.TicketStatusInProgress, domain.TicketStatusResolved},
		},
	}

	for role, edges := range granted {
		allowed := map[[2]domain.TicketStatus]bool{}
		for _, edge := range edges {
			allowed[edge] = true
		}
		for _, from := range domain.TicketStatuses {
			for _, to := range domain.TicketStatuses {
				edge := [2]domain.TicketStatus{from, to}
				assert.Equal(t, allowed[edge], Permits(role, OpChangeStatus, from, to), "%s %s->%s", role, from, to)
			}
		}
	}
}

func TestRoleGrantedEdgesAreStructurallyLegal(t *testing.T) {
	for _, rule := range Permissions() {
		if rule.From == AnyStatus || rule.To == AnyStatus || rule.To == NoChange {
			continue
		}
		if rule.Operation == OpCreateTicket {
			continue
		}
		assert.True(t, IsValidTransition(rule.From, rule.To), "%+v", rule)
	}
}

func TestHasAuthority(t *testing.T) {
	tests := []struct {
		role domain.Role
		op   Operation
		want bool
	}{
		{domain.RoleAgent, OpTake, true},
		{domain.RoleAdmin, OpTake, false},
		{domain.RoleCustomer, OpTake, false},
		{domain.RoleAgent, OpCancelTake, true},
		{domain.RoleAdmin, OpReassign, true},
		{domain.RoleAgent, OpReassign, false},
		{domain.RoleCustomer, OpPostInternalNote, false},
		{domain.RoleAgent, OpPostInternalNote, true},
		{domain.RoleAdmin, OpPostInternalNote, true},
		{domain.RoleCustomer, OpCreateTicket, true},
		{domain.RoleAgent, OpCreateTicket, false},
		{domain.RoleAdmin, OpListAuditLog, true},
		{domain.RoleAgent, OpListAuditLog, false},
		{domain.Role("GUEST"), OpPostMessage, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasAuthority(tt.role, tt.op), "%s %s", tt.role, tt.op)
	}
}

func TestPostMessagePermissions(t *testing.T) {
	for _, from := range domain.TicketStatuses {
		wantCustomer := from == domain.TicketStatusWaitingForCustomer
		assert.Equal(t, wantCustomer, Permits(domain.RoleCustomer, OpPostMessage, from, domain.TicketStatusInProgress), from)
		assert.True(t, Permits(domain.RoleAgent, OpPostMessage, from, NoChange))
		assert.True(t, Permits(domain.RoleAdmin, OpPostMessage, from, NoChange))
		assert.False(t, Permits(domain.RoleCustomer, OpPostMessage, from, NoChange))
	}
}

func TestWildcardReassign(t *testing.T) {
	assert.True(t, Permits(domain.RoleAdmin, OpReassign, domain.TicketStatusOpen, domain.TicketStatusInProgress))
	assert.True(t, Permits(domain.RoleAdmin, OpReassign, domain.TicketStatusResolved, NoChange))
	assert.False(t, Permits(domain.RoleAgent, OpReassign, domain.TicketStatusOpen, domain.TicketStatusInProgress))
}

func TestDedicatedOperation(t *testing.T) {
	op, ok := DedicatedOperation(domain.TicketStatusOpen, domain.TicketStatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, OpTake, op)

	op, ok = DedicatedOperation(domain.TicketStatusInProgress, domain.TicketStatusOpen)
	assert.True(t, ok)
	assert.Equal(t, OpCancelTake, op)

	op, ok = DedicatedOperation(domain.TicketStatusWaitingForCustomer, domain.TicketStatusInProgress)
	assert.True(t, ok)
	assert.Equal(t, OpPostMessage, op)

	_, ok = DedicatedOperation(domain.TicketStatusInProgress, domain.TicketStatusResolved)
	assert.False(t, ok)
}
