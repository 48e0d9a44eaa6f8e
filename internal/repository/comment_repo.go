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

type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

// CommentWithOwner carries the comment plus the owning account id for
// ownership checks.
type CommentWithOwner struct {
	Comment        models.Comment
	OwnerAccountID uuid.UUID
}

func (r *CommentRepo) Create(ctx context.Context, c *models.Comment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO comments (id, post_id, symbient_id, body, authored_via)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, c.ID, c.PostID, c.SymbientID, c.Body, c.AuthoredVia).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *CommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*CommentWithOwner, error) {
	var out CommentWithOwner
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, c.post_id, c.symbient_id, c.body, c.authored_via, c.created_at, c.updated_at, s.account_id
		FROM comments c
		INNER JOIN symbients s ON s.id = c.symbient_id
		WHERE c.id = $1
	`, id).Scan(&out.Comment.ID, &out.Comment.PostID, &out.Comment.SymbientID, &out.Comment.Body, &out.Comment.AuthoredVia, &out.Comment.CreatedAt, &out.Comment.UpdatedAt, &out.OwnerAccountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByPost returns a post's comments oldest-first.
func (r *CommentRepo) ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, post_id, symbient_id, body, authored_via, created_at, updated_at
		FROM comments WHERE post_id = $1 ORDER BY created_at
	`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.SymbientID, &c.Body, &c.AuthoredVia, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &c)
	}
	if list == nil {
		list = []*models.Comment{}
	}
	return list, rows.Err()
}

func (r *CommentRepo) UpdateBody(ctx context.Context, id uuid.UUID, body string) (time.Time, error) {
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE comments SET body = $2, updated_at = now() WHERE id = $1
		RETURNING updated_at
	`, id, body).Scan(&updatedAt)
	return updatedAt, err
}

func (r *CommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM comments WHERE id = $1", id)
	return err
}
