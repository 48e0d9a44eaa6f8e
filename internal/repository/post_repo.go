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

type PostRepo struct {
	pool *pgxpool.Pool
}

func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

// PostWithOwner carries the post plus the owning account id so handlers can
// run the ownership check without a second query.
type PostWithOwner struct {
	Post           models.Post
	OwnerAccountID uuid.UUID
	CommentCount   int
	VoteCount      int
}

const postColumns = `p.id, p.symbient_id, p.title, p.body, p.url, p.content_type, p.authored_via, p.created_at, p.updated_at`

// CreateTx inserts a post inside the caller's transaction so it commits or
// aborts together with the daily counter increment.
func (r *PostRepo) CreateTx(ctx context.Context, tx pgx.Tx, p *models.Post) error {
	return tx.QueryRow(ctx, `
		INSERT INTO posts (id, symbient_id, title, body, url, content_type, authored_via)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, p.ID, p.SymbientID, p.Title, p.Body, p.URL, p.ContentType, p.AuthoredVia).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetByID returns the post joined with its owner and vote/comment counts.
func (r *PostRepo) GetByID(ctx context.Context, id uuid.UUID) (*PostWithOwner, error) {
	var out PostWithOwner
	err := r.pool.QueryRow(ctx, `
		SELECT `+postColumns+`, s.account_id,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		       (SELECT COUNT(*) FROM votes v WHERE v.post_id = p.id)
		FROM posts p
		INNER JOIN symbients s ON s.id = p.symbient_id
		WHERE p.id = $1
	`, id).Scan(
		&out.Post.ID, &out.Post.SymbientID, &out.Post.Title, &out.Post.Body, &out.Post.URL,
		&out.Post.ContentType, &out.Post.AuthoredVia, &out.Post.CreatedAt, &out.Post.UpdatedAt,
		&out.OwnerAccountID, &out.CommentCount, &out.VoteCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns posts newest-first with optional case-insensitive search over
// title and body.
func (r *PostRepo) List(ctx context.Context, limit, offset int, query string) ([]*PostWithOwner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postColumns+`, s.account_id,
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		       (SELECT COUNT(*) FROM votes v WHERE v.post_id = p.id)
		FROM posts p
		INNER JOIN symbients s ON s.id = p.symbient_id
		WHERE $3 = '' OR p.title ILIKE '%' || $3 || '%' OR p.body ILIKE '%' || $3 || '%'
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*PostWithOwner
	for rows.Next() {
		var out PostWithOwner
		if err := rows.Scan(
			&out.Post.ID, &out.Post.SymbientID, &out.Post.Title, &out.Post.Body, &out.Post.URL,
			&out.Post.ContentType, &out.Post.AuthoredVia, &out.Post.CreatedAt, &out.Post.UpdatedAt,
			&out.OwnerAccountID, &out.CommentCount, &out.VoteCount,
		); err != nil {
			return nil, err
		}
		list = append(list, &out)
	}
	if list == nil {
		list = []*PostWithOwner{}
	}
	return list, rows.Err()
}

// UpdateBody sets title and body, returning the new updated_at.
func (r *PostRepo) UpdateBody(ctx context.Context, id uuid.UUID, title, body string) (time.Time, error) {
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE posts SET title = $2, body = $3, updated_at = now() WHERE id = $1
		RETURNING updated_at
	`, id, title, body).Scan(&updatedAt)
	return updatedAt, err
}

// Delete removes a post; comments and votes cascade.
func (r *PostRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM posts WHERE id = $1", id)
	return err
}
