package policy

import (
	"github.com/supportdesk/ticketflow/internal/domain"
)

// Operation names an externally visible workflow action.
type Operation string

const (
	OpCreateTicket     Operation = "create_ticket"
	OpTake             Operation = "take"
	OpCancelTake       Operation = "cancel_take"
	OpChangeStatus     Operation = "change_status"
	OpReassign         Operation = "reassign"
	OpPostMessage      Operation = "post_message"
	OpPostInternalNote Operation = "post_internal_note"
	OpListAuditLog     Operation = "list_audit_log"
)

const (
	// AnyStatus matches every status in a permission rule.
	AnyStatus domain.TicketStatus = "*"
	// NoChange marks operations that leave the status untouched.
	NoChange domain.TicketStatus = ""
)

// Permission grants role the right to run operation over the From -> To edge.
type Permission struct {
	Role      domain.Role
	Operation Operation
	From      domain.TicketStatus
	To        domain.TicketStatus
}

// permissionTable is the single place role legality lives. Structural
// legality is still checked separately against allowedTransitions.
var permissionTable = []Permission{
	{domain.RoleCustomer, OpCreateTicket, AnyStatus, domain.TicketStatusOpen},

	{domain.RoleAgent, OpTake, domain.TicketStatusOpen, domain.TicketStatusInProgress},
	{domain.RoleAgent, OpCancelTake, domain.TicketStatusInProgress, domain.TicketStatusOpen},

	{domain.RoleCustomer, OpChangeStatus, domain.TicketStatusResolved, domain.TicketStatusClosed},
	{domain.RoleAgent, OpChangeStatus, domain.TicketStatusInProgress, domain.TicketStatusWaitingForCustomer},
	{domain.RoleAgent, OpChangeStatus, domain.TicketStatusInProgress, domain.TicketStatusResolved},
	{domain.RoleAgent, OpChangeStatus, domain.TicketStatusResolved, domain.TicketStatusInProgress},
	{domain.RoleAdmin, OpChangeStatus, domain.TicketStatusResolved, domain.TicketStatusClosed},
	{domain.RoleAdmin, OpChangeStatus, domain.TicketStatusResolved, domain.TicketStatusInProgress},
	{domain.RoleAdmin, OpChangeStatus, domain.TicketStatusInProgress, domain.TicketStatusWaitingForCustomer},
	{domain.RoleAdmin, OpChangeStatus, domain.TicketStatusInProgress, domain.TicketStatusResolved},

	{domain.RoleAdmin, OpReassign, AnyStatus, AnyStatus},

	// A customer reply is the only message that moves the ticket.
	{domain.RoleCustomer, OpPostMessage, domain.TicketStatusWaitingForCustomer, domain.TicketStatusInProgress},
	{domain.RoleAgent, OpPostMessage, AnyStatus, NoChange},
	{domain.RoleAdmin, OpPostMessage, AnyStatus, NoChange},

	{domain.RoleAgent, OpPostInternalNote, AnyStatus, NoChange},
	{domain.RoleAdmin, OpPostInternalNote, AnyStatus, NoChange},

	{domain.RoleAdmin, OpListAuditLog, AnyStatus, NoChange},
}

// dedicatedEdges are structural edges that only a specialized operation
// may drive; the generic status change refuses them.
var dedicatedEdges = map[[2]domain.TicketStatus]Operation{
	{domain.TicketStatusOpen, domain.TicketStatusInProgress}:               OpTake,
	{domain.TicketStatusInProgress, domain.TicketStatusOpen}:               OpCancelTake,
	{domain.TicketStatusWaitingForCustomer, domain.TicketStatusInProgress}: OpPostMessage,
}

var (
	permissionIndex = buildPermissionIndex(permissionTable)
	authorityIndex  = buildAuthorityIndex(permissionTable)
)

func buildPermissionIndex(rules []Permission) map[Permission]struct{} {
	index := make(map[Permission]struct{}, len(rules))
	for _, rule := range rules {
		index[rule] = struct{}{}
	}
	return index
}

type authorityKey struct {
	role domain.Role
	op   Operation
}

func buildAuthorityIndex(rules []Permission) map[authorityKey]struct{} {
	index := make(map[authorityKey]struct{}, len(rules))
	for _, rule := range rules {
		index[authorityKey{rule.Role, rule.Operation}] = struct{}{}
	}
	return index
}

// Permissions returns a copy of the permission table.
func Permissions() []Permission {
	return append([]Permission(nil), permissionTable...)
}

// HasAuthority reports whether role may invoke op at all. Failing this is
// FORBIDDEN; failing Permits afterwards is an illegal edge.
func HasAuthority(role domain.Role, op Operation) bool {
	_, ok := authorityIndex[authorityKey{role, op}]
	return ok
}

// Permits reports whether role may run op over from -> to.
func Permits(role domain.Role, op Operation, from, to domain.TicketStatus) bool {
	candidates := [][2]domain.TicketStatus{
		{from, to},
		{AnyStatus, to},
		{from, AnyStatus},
		{AnyStatus, AnyStatus},
	}
	for _, edge := range candidates {
		if _, ok := permissionIndex[Permission{role, op, edge[0], edge[1]}]; ok {
			return true
		}
	}
	return false
}

// DedicatedOperation returns the operation owning from -> to, if any.
func DedicatedOperation(from, to domain.TicketStatus) (Operation, bool) {
	op, ok := dedicatedEdges[[2]domain.TicketStatus{from, to}]
	return op, ok
}
