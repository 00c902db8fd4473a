package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

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
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		string(ticket.Category),
		string(ticket.Status),
		ticket.CustomerID,
		ticket.AssigneeID,
		ticket.CreatedAt.UTC(),
		ticket.UpdatedAt.UTC(),
		utcPtr(ticket.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (r *ticketRepository) UpdateIf(ctx context.Context, cond repository.TicketCondition, patch repository.TicketPatch) (int64, error) {
	query, args := repository.BuildTicketUpdate(repository.PostgresDialect, cond, patch)
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update ticket: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	where, args := repository.BuildTicketListWhere(repository.PostgresDialect, filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id %s`,
		ticketColumns, where, repository.PageClause(filter.Limit, filter.Offset))
	rows, err := r.db.Query(ctx, query, args...)
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

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		category string
		status   string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&category,
		&status,
		&ticket.CustomerID,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	ticket.Category = domain.TicketCategory(category)
	ticket.Status = domain.TicketStatus(status)
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.UpdatedAt = ticket.UpdatedAt.UTC()
	ticket.ClosedAt = utcPtr(ticket.ClosedAt)
	return &ticket, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
