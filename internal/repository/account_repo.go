package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// GetOrCreateByEmail returns the account for email, creating it on first
// login. The upsert keeps concurrent first-redeems race-safe.
func (r *AccountRepo) GetOrCreateByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, name)
		VALUES ($1, $2, '')
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, name, handle, created_at, updated_at
	`, uuid.New(), email).Scan(&a.ID, &a.Email, &a.Name, &a.Handle, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, handle, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Email, &a.Name, &a.Handle, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateProfile sets name and handle.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uuid.UUID, name string, handle *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE accounts SET name = $2, handle = $3, updated_at = now() WHERE id = $1
	`, id, name, handle)
	return err
}
