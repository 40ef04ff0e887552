package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
)

// UserRepository reads the users table as the approver directory.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(q Querier) *UserRepository {
	return &UserRepository{q: q}
}

// FindActiveUserByRole returns the first active user holding role, or nil.
func (r *UserRepository) FindActiveUserByRole(ctx context.Context, role string) (*User, error) {
	query := `
		SELECT id, name, email, role, is_active
		FROM users
		WHERE role = $1 AND is_active = TRUE
		ORDER BY id ASC
		LIMIT 1
	`
	return r.get(ctx, query, role)
}

// GetUser returns a user by id, or nil.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, `SELECT id, name, email, role, is_active FROM users WHERE id = $1`, id)
}

func (r *UserRepository) get(ctx context.Context, query string, arg string) (*User, error) {
	u := &User{}
	err := r.q.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to look up user")
	}
	return u, nil
}
