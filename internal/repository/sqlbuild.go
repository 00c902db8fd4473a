package repository

import (
	"fmt"
	"strings"
	"time"
)

// Dialect adapts generated SQL to one driver.
type Dialect struct {
	Placeholder func(n int) string
	EncodeTime  func(t time.Time) any
}

// PostgresDialect uses $n placeholders and native timestamps.
var PostgresDialect = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	EncodeTime:  func(t time.Time) any { return t.UTC() },
}

// SQLiteDialect uses ? placeholders and integer unix microseconds.
var SQLiteDialect = Dialect{
	Placeholder: func(int) string { return "?" },
	EncodeTime:  func(t time.Time) any { return t.UTC().UnixMicro() },
}

type argList struct {
	dialect Dialect
	args    []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return a.dialect.Placeholder(len(a.args))
}

// BuildTicketUpdate renders the conditional UPDATE for cond and patch.
func BuildTicketUpdate(d Dialect, cond TicketCondition, patch TicketPatch) (string, []any) {
	args := &argList{dialect: d}

	sets := make([]string, 0, 4)
	if patch.Status != nil {
		sets = append(sets, "status = "+args.add(string(*patch.Status)))
	}
	if patch.Assignee.Set {
		sets = append(sets, "assignee_id = "+args.add(nullableString(patch.Assignee.ID)))
	}
	if patch.ClosedAt != nil {
		sets = append(sets, "closed_at = "+args.add(d.EncodeTime(*patch.ClosedAt)))
	}
	sets = append(sets, "updated_at = "+args.add(d.EncodeTime(patch.UpdatedAt)))

	clauses := []string{"id = " + args.add(cond.ID)}
	if cond.Status != nil {
		clauses = append(clauses, "status = "+args.add(string(*cond.Status)))
	}
	if cond.Assignee.Set {
		if cond.Assignee.ID == nil {
			clauses = append(clauses, "assignee_id IS NULL")
		} else {
			clauses = append(clauses, "assignee_id = "+args.add(*cond.Assignee.ID))
		}
	}
	if cond.UpdatedAt != nil {
		clauses = append(clauses, "updated_at = "+args.add(d.EncodeTime(*cond.UpdatedAt)))
	}

	query := fmt.Sprintf("UPDATE tickets SET %s WHERE %s",
		strings.Join(sets, ", "), strings.Join(clauses, " AND "))
	return query, args.args
}

// BuildTicketListWhere renders the WHERE clause for a ticket listing.
func BuildTicketListWhere(d Dialect, filter TicketFilter) (string, []any) {
	args := &argList{dialect: d}
	clauses := []string{"1=1"}

	if filter.CustomerID != nil {
		clauses = append(clauses, "customer_id = "+args.add(*filter.CustomerID))
	}
	if filter.AssigneeID != nil {
		clauses = append(clauses, "assignee_id = "+args.add(*filter.AssigneeID))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assignee_id IS NULL")
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = "+args.add(string(*filter.Status)))
	}
	return strings.Join(clauses, " AND "), args.args
}

// BuildAuditListWhere renders the WHERE clause for an audit log listing.
func BuildAuditListWhere(d Dialect, filter AuditFilter) (string, []any) {
	args := &argList{dialect: d}
	clauses := []string{"1=1"}

	if filter.EntityType != nil {
		clauses = append(clauses, "entity_type = "+args.add(string(*filter.EntityType)))
	}
	if filter.EntityID != nil {
		clauses = append(clauses, "entity_id = "+args.add(*filter.EntityID))
	}
	return strings.Join(clauses, " AND "), args.args
}

// PageClause renders LIMIT/OFFSET with normalized bounds.
func PageClause(limit, offset int) string {
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", NormalizeLimit(limit), offset)
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
