package sqlite

import (
	"context"
	"fmt"

	"github.com/supportdesk/ticketflow/internal/domain"
)

type ticketMessageRepository struct {
	db dbtx
}

func (r *ticketMessageRepository) Create(ctx context.Context, msg *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (id, ticket_id, author_id, author_role, content, is_internal, created_at)
        VALUES (?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.AuthorID,
		string(msg.AuthorRole),
		msg.Content,
		msg.IsInternal,
		toMicros(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ticket message: %w", err)
	}
	return nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_role, content, is_internal, created_at
        FROM ticket_messages WHERE ticket_id=? ORDER BY created_at ASC, rowid ASC`
	rows, err := r.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var (
			msg       domain.TicketMessage
			role      string
			createdAt int64
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&role,
			&msg.Content,
			&msg.IsInternal,
			&createdAt,
		); err != nil {
			return nil, err
		}
		msg.AuthorRole = domain.Role(role)
		msg.CreatedAt = fromMicros(createdAt)
		result = append(result, msg)
	}
	return result, rows.Err()
}
