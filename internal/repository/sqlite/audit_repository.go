package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
)

// auditRepository only inserts and selects; triggers reject the rest.
type auditRepository struct {
	db dbtx
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	const query = `
        INSERT INTO audit_logs (id, entity_type, entity_id, action, actor_id, metadata, created_at)
        VALUES (?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.EntityType),
		entry.EntityID,
		string(entry.Action),
		entry.ActorID,
		string(metadata),
		toMicros(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditLogEntry, int, error) {
	where, args := repository.BuildAuditListWhere(repository.SQLiteDialect, filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT id, entity_type, entity_id, action, actor_id, metadata, created_at
        FROM audit_logs WHERE %s ORDER BY created_at ASC, rowid ASC %s`,
		where, repository.PageClause(filter.Limit, filter.Offset))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.AuditLogEntry, 0)
	for rows.Next() {
		var (
			entry      domain.AuditLogEntry
			entityType string
			action     string
			metadata   string
			createdAt  int64
		)
		if err := rows.Scan(
			&entry.ID,
			&entityType,
			&entry.EntityID,
			&action,
			&entry.ActorID,
			&metadata,
			&createdAt,
		); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, 0, fmt.Errorf("decode audit metadata %s: %w", entry.ID, err)
		}
		entry.EntityType = domain.AuditEntityType(entityType)
		entry.Action = domain.AuditAction(action)
		entry.CreatedAt = fromMicros(createdAt)
		result = append(result, entry)
	}
	return result, total, rows.Err()
}
