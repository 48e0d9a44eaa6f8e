package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campfire/backend/internal/models"
)

type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// Find returns the account's vote on a post, or ErrNotFound.
func (r *VoteRepo) Find(ctx context.Context, accountID, postID uuid.UUID) (*models.Vote, error) {
	var v models.Vote
	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, post_id, created_at
		FROM votes WHERE account_id = $1 AND post_id = $2
	`, accountID, postID).Scan(&v.ID, &v.AccountID, &v.PostID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a vote; a concurrent duplicate surfaces as ErrDuplicateVote.
func (r *VoteRepo) Create(ctx context.Context, v *models.Vote) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO votes (id, account_id, post_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, v.ID, v.AccountID, v.PostID).Scan(&v.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateVote
	}
	return err
}

func (r *VoteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM votes WHERE id = $1", id)
	return err
}
