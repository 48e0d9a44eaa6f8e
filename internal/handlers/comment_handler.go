package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/models"
	"github.com/campfire/backend/internal/ratelimit"
	"github.com/campfire/backend/internal/repository"
)

// CommentRepoForHandler is the subset of the comment repository the handler
// needs.
type CommentRepoForHandler interface {
	Create(ctx context.Context, c *models.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.CommentWithOwner, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error)
	UpdateBody(ctx context.Context, id uuid.UUID, body string) (time.Time, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostChecker verifies the target post exists.
type PostChecker interface {
	GetByID(ctx context.Context, id uuid.UUID) (*repository.PostWithOwner, error)
}

// CommentHandler serves /api/comments and /api/posts/{id}/comments.
type CommentHandler struct {
	Comments  CommentRepoForHandler
	Posts     PostChecker
	Symbients SymbientResolver
	Limiter   ratelimit.Limiter
	Logger    *slog.Logger

	Now func() time.Time
}

func (h *CommentHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type createCommentRequest struct {
	PostID string `json:"post_id"`
	Body   string `json:"body"`
}

// Create handles POST /api/comments.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	sym, err := resolveSymbient(r.Context(), h.Symbients, ident)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "you must create a symbient first")
			return
		}
		h.Logger.Error("resolve symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req createCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	postID, err := uuid.Parse(req.PostID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post_id")
		return
	}
	if strings.TrimSpace(req.Body) == "" || len(req.Body) > maxBodyLen {
		writeError(w, http.StatusBadRequest, "comment body must be 1-10000 characters")
		return
	}

	res, err := h.Limiter.Allow(r.Context(), "comment:account:"+ident.AccountID.String())
	if err != nil {
		h.Logger.Error("comment rate check", "error", err)
	} else if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(h.now())))
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	if _, err := h.Posts.GetByID(r.Context(), postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		h.Logger.Error("fetch post for comment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	c := &models.Comment{
		ID:          uuid.New(),
		PostID:      postID,
		SymbientID:  sym.ID,
		Body:        req.Body,
		AuthoredVia: authoredVia(ident),
	}
	if err := h.Comments.Create(r.Context(), c); err != nil {
		h.Logger.Error("create comment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ListByPost handles GET /api/posts/{id}/comments.
func (h *CommentHandler) ListByPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := h.Comments.ListByPost(r.Context(), postID)
	if err != nil {
		h.Logger.Error("list comments", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type updateCommentRequest struct {
	Body string `json:"body"`
}

// Update handles PATCH /api/comments/{id}. Same anti-enumeration and
// edit-window policy as posts.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if strings.TrimSpace(req.Body) == "" || len(req.Body) > maxBodyLen {
		writeError(w, http.StatusBadRequest, "comment body must be 1-10000 characters")
		return
	}

	c, err := h.Comments.GetByID(r.Context(), id)
	if err != nil {
		h.commentLookupError(w, err)
		return
	}
	if c.OwnerAccountID != ident.AccountID {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	if h.now().Sub(c.Comment.CreatedAt) > EditWindow {
		writeError(w, http.StatusForbidden, "edit window expired")
		return
	}

	updatedAt, err := h.Comments.UpdateBody(r.Context(), id, req.Body)
	if err != nil {
		h.Logger.Error("update comment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	c.Comment.Body = req.Body
	c.Comment.UpdatedAt = updatedAt
	writeJSON(w, http.StatusOK, c.Comment)
}

// Delete handles DELETE /api/comments/{id}.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Comments.GetByID(r.Context(), id)
	if err != nil {
		h.commentLookupError(w, err)
		return
	}
	if c.OwnerAccountID != ident.AccountID {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	if err := h.Comments.Delete(r.Context(), id); err != nil {
		h.Logger.Error("delete comment", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CommentHandler) commentLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}
	h.Logger.Error("fetch comment", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
