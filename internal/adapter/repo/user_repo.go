package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"texturelab/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, email, credits, created_at, updated_at
FROM users
WHERE id = $1;
`, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Credits, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DecrementCredit deducts one credit in a single conditional UPDATE so
// the balance can never go below zero. A zero-row result means the user
// is either unknown or out of credit; the distinction is resolved with
// a follow-up read.
func (r *UserRepositoryPG) DecrementCredit(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET credits = credits - 1,
    updated_at = NOW()
WHERE id = $1
  AND credits > 0;
`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInsufficientCredit
	}
	return nil
}
