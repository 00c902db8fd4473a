package postgres

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
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.AuthorID,
		string(msg.AuthorRole),
		msg.Content,
		msg.IsInternal,
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert ticket message: %w", err)
	}
	return nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, author_id, author_role, content, is_internal, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket messages: %w", err)
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var (
			msg  domain.TicketMessage
			role string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&role,
			&msg.Content,
			&msg.IsInternal,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.AuthorRole = domain.Role(role)
		msg.CreatedAt = msg.CreatedAt.UTC()
		result = append(result, msg)
	}
	return result, rows.Err()
}
