package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/models"
	"github.com/campfire/backend/internal/ratelimit"
	"github.com/campfire/backend/internal/repository"
	"github.com/campfire/backend/internal/services"
)

// EditWindow bounds how long after creation a content item may be edited.
// The comparison is elapsed <= EditWindow, so an edit at exactly the
// boundary is allowed.
const EditWindow = 15 * time.Minute

const (
	maxTitleLen = 200
	maxBodyLen  = 10000
)

// PostRepoForHandler is the subset of the post repository the handler needs.
type PostRepoForHandler interface {
	CreateTx(ctx context.Context, tx pgx.Tx, p *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.PostWithOwner, error)
	List(ctx context.Context, limit, offset int, query string) ([]*repository.PostWithOwner, error)
	UpdateBody(ctx context.Context, id uuid.UUID, title, body string) (time.Time, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SymbientResolver maps an identity to its acting symbient.
type SymbientResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Symbient, error)
	FirstByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Symbient, error)
}

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DailyQuota abstracts the quota service.
type DailyQuota interface {
	ConsumeDailyPost(ctx context.Context, tx pgx.Tx, symbientID uuid.UUID, now time.Time) error
}

// PostHandler serves /api/posts.
type PostHandler struct {
	Pool      TxBeginner
	Posts     PostRepoForHandler
	Symbients SymbientResolver
	Quota     DailyQuota
	Limiter   ratelimit.Limiter
	Logger    *slog.Logger

	// Now is the clock; nil means time.Now. Injected by tests.
	Now func() time.Time
}

func (h *PostHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

type createPostRequest struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type postResponse struct {
	models.Post
	CommentCount int `json:"comment_count"`
	VoteCount    int `json:"vote_count"`
}

// Create handles POST /api/posts.
// Identity -> validate -> rate limit -> locked quota tx -> insert.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	sym, ok := h.actingSymbient(w, r, ident)
	if !ok {
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	// Validation runs before the rate limiter and quota so malformed
	// requests don't consume budget.
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeError(w, http.StatusBadRequest, "title must be 1-200 characters")
		return
	}
	if strings.TrimSpace(req.Body) == "" || len(req.Body) > maxBodyLen {
		writeError(w, http.StatusBadRequest, "body must be 1-10000 characters")
		return
	}
	if req.ContentType == "" {
		req.ContentType = models.ContentTypeSkill
	}
	if !models.ValidContentTypes[req.ContentType] {
		writeError(w, http.StatusBadRequest, "content_type must be one of: skill, memory, artifact, pattern, question")
		return
	}
	var postURL *string
	if req.URL != "" {
		parsed, err := url.Parse(req.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			writeError(w, http.StatusBadRequest, "url must use http or https")
			return
		}
		postURL = &req.URL
	}

	res, err := h.Limiter.Allow(r.Context(), "post:account:"+ident.AccountID.String())
	if err != nil {
		h.Logger.Error("post rate check", "error", err)
	} else if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(h.now())))
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	post := &models.Post{
		ID:          uuid.New(),
		SymbientID:  sym.ID,
		Title:       req.Title,
		Body:        req.Body,
		URL:         postURL,
		ContentType: req.ContentType,
		AuthoredVia: authoredVia(ident),
	}

	// The quota decision and the insert share one transaction; the row lock
	// inside ConsumeDailyPost serializes concurrent creations.
	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Quota.ConsumeDailyPost(r.Context(), tx, sym.ID, h.now()); err != nil {
		if errors.Is(err, services.ErrDailyLimitReached) {
			w.Header().Set("Retry-After", strconv.Itoa(services.SecondsUntilUTCMidnight(h.now())))
			writeError(w, http.StatusTooManyRequests, "daily post limit reached")
			return
		}
		h.Logger.Error("consume daily quota", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.Posts.CreateTx(r.Context(), tx, post); err != nil {
		h.Logger.Error("create post", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit post tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, postResponse{Post: *post})
}

// List handles GET /api/posts with limit/offset/q parameters.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	query := r.URL.Query().Get("q")

	list, err := h.Posts.List(r.Context(), limit, offset, query)
	if err != nil {
		h.Logger.Error("list posts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]postResponse, 0, len(list))
	for _, p := range list {
		out = append(out, postResponse{Post: p.Post, CommentCount: p.CommentCount, VoteCount: p.VoteCount})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/posts/{id}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Posts.GetByID(r.Context(), id)
	if err != nil {
		h.postLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postResponse{Post: p.Post, CommentCount: p.CommentCount, VoteCount: p.VoteCount})
}

type updatePostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Update handles PATCH /api/posts/{id}. Absent and not-owned answer the
// same 404 so identifiers can't be enumerated; an expired window is a
// distinct 403 since ownership is already established by then.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updatePostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeError(w, http.StatusBadRequest, "title must be 1-200 characters")
		return
	}
	if strings.TrimSpace(req.Body) == "" || len(req.Body) > maxBodyLen {
		writeError(w, http.StatusBadRequest, "body must be 1-10000 characters")
		return
	}

	p, err := h.Posts.GetByID(r.Context(), id)
	if err != nil {
		h.postLookupError(w, err)
		return
	}
	if p.OwnerAccountID != ident.AccountID {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if h.now().Sub(p.Post.CreatedAt) > EditWindow {
		writeError(w, http.StatusForbidden, "edit window expired")
		return
	}

	updatedAt, err := h.Posts.UpdateBody(r.Context(), id, req.Title, req.Body)
	if err != nil {
		h.Logger.Error("update post", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	p.Post.Title = req.Title
	p.Post.Body = req.Body
	p.Post.UpdatedAt = updatedAt
	writeJSON(w, http.StatusOK, postResponse{Post: p.Post, CommentCount: p.CommentCount, VoteCount: p.VoteCount})
}

// Delete handles DELETE /api/posts/{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.Posts.GetByID(r.Context(), id)
	if err != nil {
		h.postLookupError(w, err)
		return
	}
	if p.OwnerAccountID != ident.AccountID {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err := h.Posts.Delete(r.Context(), id); err != nil {
		h.Logger.Error("delete post", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PostHandler) postLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	h.Logger.Error("fetch post", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// actingSymbient resolves the identity's symbient, writing the error
// response itself when there is none.
func (h *PostHandler) actingSymbient(w http.ResponseWriter, r *http.Request, ident middleware.Identity) (*models.Symbient, bool) {
	sym, err := resolveSymbient(r.Context(), h.Symbients, ident)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "you must create a symbient first")
			return nil, false
		}
		h.Logger.Error("resolve symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return sym, true
}
