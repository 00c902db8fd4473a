package postgres

import (
	"context"

	"github.com/supportdesk/ticketflow/internal/domain"
)

// userRepository reads the accounts table owned by the identity system.
type userRepository struct {
	db dbtx
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.DirectoryUser, error) {
	const query = `SELECT id, email, role, is_active FROM users WHERE id=$1`

	var (
		user domain.DirectoryUser
		role string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
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
