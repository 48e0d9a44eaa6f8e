package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire/backend/internal/models"
)

type SymbientRepo struct {
	pool *pgxpool.Pool
}

func NewSymbientRepo(pool *pgxpool.Pool) *SymbientRepo {
	return &SymbientRepo{pool: pool}
}

const symbientColumns = `id, account_id, name, description, website, api_key_hash, api_key_prefix, daily_post_count, daily_post_date, last_active_at, created_at, updated_at`

func scanSymbient(row pgx.Row) (*models.Symbient, error) {
	var s models.Symbient
	err := row.Scan(&s.ID, &s.AccountID, &s.Name, &s.Description, &s.Website, &s.APIKeyHash, &s.APIKeyPrefix, &s.DailyPostCount, &s.DailyPostDate, &s.LastActiveAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a symbient. The unique index on account_id turns a
// concurrent second creation into ErrSymbientExists rather than a fatal
// error.
func (r *SymbientRepo) Create(ctx context.Context, s *models.Symbient) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO symbients (id, account_id, name, description, website)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, s.ID, s.AccountID, s.Name, s.Description, s.Website).Scan(&s.CreatedAt, &s.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSymbientExists
	}
	return err
}

func (r *SymbientRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Symbient, error) {
	return scanSymbient(r.pool.QueryRow(ctx, `
		SELECT `+symbientColumns+` FROM symbients WHERE id = $1
	`, id))
}

// FirstByAccountID resolves the acting symbient for a session identity.
func (r *SymbientRepo) FirstByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Symbient, error) {
	return scanSymbient(r.pool.QueryRow(ctx, `
		SELECT `+symbientColumns+` FROM symbients
		WHERE account_id = $1 ORDER BY created_at LIMIT 1
	`, accountID))
}

// GetByKeyPrefix narrows credential lookup to the (at most one) symbient
// whose stored prefix matches.
func (r *SymbientRepo) GetByKeyPrefix(ctx context.Context, prefix string) (*models.Symbient, error) {
	return scanSymbient(r.pool.QueryRow(ctx, `
		SELECT `+symbientColumns+` FROM symbients
		WHERE api_key_prefix = $1 AND api_key_hash IS NOT NULL
	`, prefix))
}

// ListLegacyKeyed returns symbients keyed before prefix indexing existed.
// The full scan is a migration affordance that shrinks as prefixes are
// backfilled.
func (r *SymbientRepo) ListLegacyKeyed(ctx context.Context) ([]*models.Symbient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+symbientColumns+` FROM symbients
		WHERE api_key_prefix IS NULL AND api_key_hash IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Symbient
	for rows.Next() {
		var s models.Symbient
		if err := rows.Scan(&s.ID, &s.AccountID, &s.Name, &s.Description, &s.Website, &s.APIKeyHash, &s.APIKeyPrefix, &s.DailyPostCount, &s.DailyPostDate, &s.LastActiveAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// BackfillKeyPrefix records the prefix for a legacy row so future lookups
// are indexed.
func (r *SymbientRepo) BackfillKeyPrefix(ctx context.Context, id uuid.UUID, prefix string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE symbients SET api_key_prefix = $2 WHERE id = $1 AND api_key_prefix IS NULL
	`, id, prefix)
	return err
}

// SetAPIKey stores a new credential hash and prefix, replacing any prior key.
func (r *SymbientRepo) SetAPIKey(ctx context.Context, id uuid.UUID, hash, prefix string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE symbients SET api_key_hash = $2, api_key_prefix = $3, updated_at = now() WHERE id = $1
	`, id, hash, prefix)
	return err
}

// ClearAPIKey revokes the credential.
func (r *SymbientRepo) ClearAPIKey(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE symbients SET api_key_hash = NULL, api_key_prefix = NULL, updated_at = now() WHERE id = $1
	`, id)
	return err
}

// UpdateSettings sets description and website.
func (r *SymbientRepo) UpdateSettings(ctx context.Context, id uuid.UUID, description, website *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE symbients SET description = $2, website = $3, updated_at = now() WHERE id = $1
	`, id, description, website)
	return err
}

// TouchLastActive records activity. Called fire-and-forget after successful
// credential auth; callers ignore the error.
func (r *SymbientRepo) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE symbients SET last_active_at = now() WHERE id = $1
	`, id)
	return err
}

// GetByIDForUpdate locks the symbient row. Call within a transaction; the
// daily post counter decision rides on this lock.
func (r *SymbientRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Symbient, error) {
	return scanSymbient(tx.QueryRow(ctx, `
		SELECT `+symbientColumns+` FROM symbients WHERE id = $1 FOR UPDATE
	`, id))
}

// SetDailyPostCount writes the counter and its date. Call after
// GetByIDForUpdate in the same tx.
func (r *SymbientRepo) SetDailyPostCount(ctx context.Context, tx pgx.Tx, id uuid.UUID, count int, date time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE symbients SET daily_post_count = $2, daily_post_date = $3 WHERE id = $1
	`, id, count, date)
	return err
}
