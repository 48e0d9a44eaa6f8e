package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound is returned when a session token maps to no live row.
var ErrSessionNotFound = errors.New("session not found")

// Repository persists browser sessions. Tokens are stored as SHA-256
// digests, never plaintext.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateSession(ctx context.Context, tokenHash string, accountID uuid.UUID, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, account_id, expires_at)
		VALUES ($1, $2, $3)
	`, tokenHash, accountID, expiresAt)
	return err
}

// GetSessionAccount returns the account owning a live session.
func (r *Repository) GetSessionAccount(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT account_id FROM sessions
		WHERE token_hash = $1 AND expires_at > now()
	`, tokenHash).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return accountID, nil
}

func (r *Repository) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE token_hash = $1", tokenHash)
	return err
}

// DeleteExpired prunes dead sessions. Main runs it on an hourly ticker.
func (r *Repository) DeleteExpired(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM sessions WHERE expires_at <= now()")
	return err
}
