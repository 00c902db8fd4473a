package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
)

const ticketColumns = `id, title, category, status, customer_id, assignee_id, created_at, updated_at, closed_at`

type ticketRepository struct {
	db dbtx
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, category, status, customer_id, assignee_id, created_at, updated_at, closed_at)
        VALUES (?,?,?,?,?,?,?,?,?)`
	var closedAt any
	if ticket.ClosedAt != nil {
		closedAt = toMicros(*ticket.ClosedAt)
	}
	_, err := r.db.ExecContext(ctx, query,
		ticket.ID,
		ticket.Title,
		string(ticket.Category),
		string(ticket.Status),
		ticket.CustomerID,
		ticket.AssigneeID,
		toMicros(ticket.CreatedAt),
		toMicros(ticket.UpdatedAt),
		closedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) UpdateIf(ctx context.Context, cond repository.TicketCondition, patch repository.TicketPatch) (int64, error) {
	query, args := repository.BuildTicketUpdate(repository.SQLiteDialect, cond, patch)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update ticket: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update ticket rows affected: %w", err)
	}
	return affected, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=?`
	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	where, args := repository.BuildTicketListWhere(repository.SQLiteDialect, filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id %s`,
		ticketColumns, where, repository.PageClause(filter.Limit, filter.Offset))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Ticket, 0)
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket    domain.Ticket
		category  string
		status    string
		assignee  sql.NullString
		createdAt int64
		updatedAt int64
		closedAt  sql.NullInt64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&category,
		&status,
		&ticket.CustomerID,
		&assignee,
		&createdAt,
		&updatedAt,
		&closedAt,
	); err != nil {
		return nil, err
	}
	ticket.Category = domain.TicketCategory(category)
	ticket.Status = domain.TicketStatus(status)
	if assignee.Valid {
		id := assignee.String
		ticket.AssigneeID = &id
	}
	ticket.CreatedAt = fromMicros(createdAt)
	ticket.UpdatedAt = fromMicros(updatedAt)
	if closedAt.Valid {
		at := fromMicros(closedAt.Int64)
		ticket.ClosedAt = &at
	}
	return &ticket, nil
}
