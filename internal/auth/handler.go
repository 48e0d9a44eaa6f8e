package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/campfire/backend/internal/ratelimit"
)

// SessionCookie is the browser session cookie name.
const SessionCookie = "campfire_session"

type Handler struct {
	svc         Service
	linkLimiter ratelimit.Limiter
	secure      bool
	log         *slog.Logger
}

// NewHandler creates the auth handler. linkLimiter throttles magic-link
// requests per email; secure controls the cookie's Secure flag.
func NewHandler(svc Service, linkLimiter ratelimit.Limiter, secure bool, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, linkLimiter: linkLimiter, secure: secure, log: log}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

// RequestMagicLink handles POST /api/auth/magic-link. The response is 202
// regardless of whether the email has an account.
func (h *Handler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		http.Error(w, `{"error":"valid email is required"}`, http.StatusBadRequest)
		return
	}

	res, err := h.linkLimiter.Allow(r.Context(), "email:"+email)
	if err != nil {
		h.log.Error("magic link rate check", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !res.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(time.Now())))
		http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
		return
	}

	if err := h.svc.RequestMagicLink(r.Context(), email); err != nil {
		h.log.Error("request magic link", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"sent"}`))
}

type redeemRequest struct {
	Token string `json:"token"`
}

// Redeem handles POST /api/auth/redeem: link token in, session cookie out.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, `{"error":"token is required"}`, http.StatusBadRequest)
		return
	}

	sessionToken, acc, err := h.svc.RedeemMagicLink(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrInvalidLinkToken) {
			http.Error(w, `{"error":"invalid or expired login link"}`, http.StatusUnauthorized)
			return
		}
		h.log.Error("redeem magic link", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token":   sessionToken,
		"account": acc,
	})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := h.svc.Logout(r.Context(), c.Value); err != nil {
			h.log.Error("logout", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"logged out"}`))
}
