package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
)

// auditRepository only ever inserts and selects. The table additionally
// carries triggers that reject UPDATE and DELETE.
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
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = r.db.Exec(ctx, query,
		entry.ID,
		string(entry.EntityType),
		entry.EntityID,
		string(entry.Action),
		entry.ActorID,
		metadata,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditLogEntry, int, error) {
	where, args := repository.BuildAuditListWhere(repository.PostgresDialect, filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT id, entity_type, entity_id, action, actor_id, metadata, created_at
        FROM audit_logs WHERE %s ORDER BY created_at ASC, id ASC %s`,
		where, repository.PageClause(filter.Limit, filter.Offset))
	rows, err := r.db.Query(ctx, query, args...)
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
			metadata   []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entityType,
			&entry.EntityID,
			&action,
			&entry.ActorID,
			&metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, 0, fmt.Errorf("decode audit metadata %s: %w", entry.ID, err)
		}
		entry.EntityType = domain.AuditEntityType(entityType)
		entry.Action = domain.AuditAction(action)
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	return result, total, rows.Err()
}
