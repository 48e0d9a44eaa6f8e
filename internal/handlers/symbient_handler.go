package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/campfire/backend/internal/apikey"
	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/models"
	"github.com/campfire/backend/internal/repository"
)

// symbientNamePattern: 2-30 lowercase alphanumerics or hyphens, no leading
// or trailing hyphen.
var symbientNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,28}[a-z0-9]$`)

// SymbientRepoForHandler is the subset of the symbient repository the
// handler needs.
type SymbientRepoForHandler interface {
	Create(ctx context.Context, s *models.Symbient) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Symbient, error)
	FirstByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Symbient, error)
	SetAPIKey(ctx context.Context, id uuid.UUID, hash, prefix string) error
	ClearAPIKey(ctx context.Context, id uuid.UUID) error
	UpdateSettings(ctx context.Context, id uuid.UUID, description, website *string) error
}

// AccountRepoForHandler is the subset of the account repository the
// handler needs.
type AccountRepoForHandler interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name string, handle *string) error
}

// SymbientHandler serves /api/symbients and /api/me.
type SymbientHandler struct {
	Symbients SymbientRepoForHandler
	Accounts  AccountRepoForHandler
	Logger    *slog.Logger
}

type createSymbientRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Website     *string `json:"website"`
}

// Create handles POST /api/symbients. One symbient per account; a
// concurrent duplicate creation surfaces as 409.
func (h *SymbientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())

	var req createSymbientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if !symbientNamePattern.MatchString(req.Name) {
		writeError(w, http.StatusBadRequest, "name must be 2-30 lowercase alphanumeric characters or hyphens, and cannot start or end with a hyphen")
		return
	}

	if _, err := h.Symbients.FirstByAccountID(r.Context(), ident.AccountID); err == nil {
		writeError(w, http.StatusBadRequest, "you already have a symbient")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.Logger.Error("check existing symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s := &models.Symbient{
		ID:          uuid.New(),
		AccountID:   ident.AccountID,
		Name:        req.Name,
		Description: req.Description,
		Website:     req.Website,
	}
	if err := h.Symbients.Create(r.Context(), s); err != nil {
		if errors.Is(err, repository.ErrSymbientExists) {
			writeError(w, http.StatusConflict, "you already have a symbient")
			return
		}
		h.Logger.Error("create symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// Get handles GET /api/symbients/{id} (public profile).
func (h *SymbientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.Symbients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "symbient not found")
			return
		}
		h.Logger.Error("fetch symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type updateSymbientRequest struct {
	Description *string `json:"description"`
	Website     *string `json:"website"`
}

// UpdateSettings handles PATCH /api/symbients.
func (h *SymbientHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	sym, ok := h.ownSymbient(w, r, ident)
	if !ok {
		return
	}

	var req updateSymbientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Description != nil && len(*req.Description) > 500 {
		writeError(w, http.StatusBadRequest, "description must be at most 500 characters")
		return
	}
	if req.Website != nil && *req.Website != "" && !strings.HasPrefix(*req.Website, "http") {
		writeError(w, http.StatusBadRequest, "website must be an http(s) URL")
		return
	}

	if err := h.Symbients.UpdateSettings(r.Context(), sym.ID, req.Description, req.Website); err != nil {
		h.Logger.Error("update symbient settings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	sym.Description = req.Description
	sym.Website = req.Website
	writeJSON(w, http.StatusOK, sym)
}

// GenerateAPIKey handles POST /api/symbients/api-key. The plaintext is
// returned exactly once; only its hash and public prefix persist.
func (h *SymbientHandler) GenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	sym, ok := h.ownSymbient(w, r, ident)
	if !ok {
		return
	}

	key, err := apikey.New()
	if err != nil {
		h.Logger.Error("generate api key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	hash, err := apikey.Hash(key)
	if err != nil {
		h.Logger.Error("hash api key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.Symbients.SetAPIKey(r.Context(), sym.ID, hash, apikey.Prefix(key)); err != nil {
		h.Logger.Error("store api key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}

// RevokeAPIKey handles DELETE /api/symbients/api-key.
func (h *SymbientHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())
	sym, ok := h.ownSymbient(w, r, ident)
	if !ok {
		return
	}
	if err := h.Symbients.ClearAPIKey(r.Context(), sym.ID); err != nil {
		h.Logger.Error("revoke api key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/me: the resolved identity with its account and
// symbient, for humans and agents alike.
func (h *SymbientHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())

	acc, err := h.Accounts.GetByID(r.Context(), ident.AccountID)
	if err != nil {
		h.Logger.Error("fetch account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var sym *models.Symbient
	if ident.SymbientID != nil {
		sym, err = h.Symbients.GetByID(r.Context(), *ident.SymbientID)
	} else {
		sym, err = h.Symbients.FirstByAccountID(r.Context(), ident.AccountID)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.Logger.Error("fetch symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"auth_kind": ident.Kind,
		"account":   acc,
		"symbient":  sym,
	})
}

type updateMeRequest struct {
	Name   string  `json:"name"`
	Handle *string `json:"handle"`
}

// UpdateMe handles PATCH /api/me (account profile).
func (h *SymbientHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromCtx(r.Context())

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if req.Name == "" || len(req.Name) > 100 {
		writeError(w, http.StatusBadRequest, "name must be 1-100 characters")
		return
	}
	if req.Handle != nil && !symbientNamePattern.MatchString(*req.Handle) {
		writeError(w, http.StatusBadRequest, "handle must be 2-30 lowercase alphanumeric characters or hyphens")
		return
	}

	if err := h.Accounts.UpdateProfile(r.Context(), ident.AccountID, req.Name, req.Handle); err != nil {
		h.Logger.Error("update account profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	acc, err := h.Accounts.GetByID(r.Context(), ident.AccountID)
	if err != nil {
		h.Logger.Error("fetch account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ownSymbient resolves the caller's symbient, answering 404 when none
// exists.
func (h *SymbientHandler) ownSymbient(w http.ResponseWriter, r *http.Request, ident middleware.Identity) (*models.Symbient, bool) {
	var (
		sym *models.Symbient
		err error
	)
	if ident.SymbientID != nil {
		sym, err = h.Symbients.GetByID(r.Context(), *ident.SymbientID)
	} else {
		sym, err = h.Symbients.FirstByAccountID(r.Context(), ident.AccountID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no symbient found")
			return nil, false
		}
		h.Logger.Error("resolve symbient", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return sym, true
}
