package sqlite

import (
	"context"

	"github.com/supportdesk/ticketflow/internal/domain"
)

type userRepository struct {
	db dbtx
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.DirectoryUser, error) {
	const query = `SELECT id, email, role, is_active FROM users WHERE id=?`

	var (
		user domain.DirectoryUser
		role string
	)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&role,
		&user.Active,
	); err != nil {
		return nil, notFound(err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// PutUser upserts a directory account. The engine itself never writes
// users; seeding tools and tests do.
func (s *Store) PutUser(ctx context.Context, user domain.DirectoryUser) error {
	const query = `
        INSERT INTO users (id, email, role, is_active) VALUES (?,?,?,?)
        ON CONFLICT (id) DO UPDATE SET email=excluded.email, role=excluded.role, is_active=excluded.is_active`
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, string(user.Role), user.Active)
	return err
}
