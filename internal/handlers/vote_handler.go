package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/models"
	"github.com/campfire/backend/internal/repository"
)

// VoteRepoForHandler is the subset of the vote repository the handler needs.
type VoteRepoForHandler interface {
	Find(ctx context.Context, accountID, postID uuid.UUID) (*models.Vote, error)
	Create(ctx context.Context, v *models.Vote) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VoteHandler serves POST /api/posts/{id}/vote.
type VoteHandler struct {
	Votes  VoteRepoForHandler
	Posts  PostChecker
	Logger *slog.Logger
}

// Toggle flips the caller's vote on a post. A concurrent duplicate insert
// means another request already voted, which is the outcome the caller
// asked for, so it maps to the success path.
func (h *VoteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	postID, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.Posts.GetByID(r.Context(), postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		h.Logger.Error("fetch post for vote", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	existing, err := h.Votes.Find(r.Context(), ident.AccountID, postID)
	switch {
	case err == nil:
		if err := h.Votes.Delete(r.Context(), existing.ID); err != nil {
			h.Logger.Error("delete vote", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"voted": false})
	case errors.Is(err, repository.ErrNotFound):
		v := &models.Vote{ID: uuid.New(), AccountID: ident.AccountID, PostID: postID}
		if err := h.Votes.Create(r.Context(), v); err != nil {
			if errors.Is(err, repository.ErrDuplicateVote) {
				writeJSON(w, http.StatusOK, map[string]bool{"voted": true})
				return
			}
			h.Logger.Error("create vote", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"voted": true})
	default:
		h.Logger.Error("find vote", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
