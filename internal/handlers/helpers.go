package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON parses the body into v, writing the 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return err
	}
	return nil
}

// pathID parses the {id} path segment, writing the 404 itself on failure.
// A non-UUID id can't name an existing item, so the answer matches the
// not-found response.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return uuid.Nil, false
	}
	return id, true
}

// authoredVia records which credential path produced a content item.
func authoredVia(ident middleware.Identity) string {
	if ident.Kind == middleware.KindAPIKey {
		return models.AuthoredViaAPIKey
	}
	return models.AuthoredViaSession
}

// resolveSymbient returns the identity's acting symbient: the one bound to
// the API key, or the account's first symbient for session callers.
func resolveSymbient(ctx context.Context, repo SymbientResolver, ident middleware.Identity) (*models.Symbient, error) {
	if ident.SymbientID != nil {
		return repo.GetByID(ctx, *ident.SymbientID)
	}
	return repo.FirstByAccountID(ctx, ident.AccountID)
}
