package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campfire/backend/internal/apikey"
	"github.com/campfire/backend/internal/auth"
	"github.com/campfire/backend/internal/models"
	"github.com/campfire/backend/internal/ratelimit"
	"github.com/campfire/backend/internal/repository"
)

type contextKey string

const ctxIdentityKey contextKey = "identity"

// Identity kinds.
const (
	KindSession      = "session"
	KindAPIKey       = "api_key"
	KindUnauthorized = "unauthorized"
)

// Identity is the resolved caller of one request. Constructed fresh per
// request and never persisted.
type Identity struct {
	Kind      string
	AccountID uuid.UUID

	// SymbientID is set for api_key auth. Session callers resolve their
	// acting symbient lazily (first symbient of the account).
	SymbientID *uuid.UUID

	// Err, Status, and RetryAfter describe the failure when Kind is
	// KindUnauthorized.
	Err        string
	Status     int
	RetryAfter int
}

// SessionResolver maps a session token to an account.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (uuid.UUID, error)
}

// SymbientKeyRepo is the credential-lookup surface of the symbient
// repository.
type SymbientKeyRepo interface {
	GetByKeyPrefix(ctx context.Context, prefix string) (*models.Symbient, error)
	ListLegacyKeyed(ctx context.Context) ([]*models.Symbient, error)
	BackfillKeyPrefix(ctx context.Context, id uuid.UUID, prefix string) error
	TouchLastActive(ctx context.Context, id uuid.UUID) error
}

// Authenticator resolves request credentials into an Identity: session
// cookie first, then bearer API key.
type Authenticator struct {
	Sessions  SessionResolver
	Symbients SymbientKeyRepo

	// KeyLimiter throttles credential checks per caller IP before any
	// bcrypt comparison is attempted.
	KeyLimiter ratelimit.Limiter

	Logger *slog.Logger
}

// Resolve produces exactly one Identity for the request.
func (a *Authenticator) Resolve(r *http.Request) Identity {
	if c, err := r.Cookie(auth.SessionCookie); err == nil && c.Value != "" {
		accountID, err := a.Sessions.ResolveSession(r.Context(), c.Value)
		if err == nil {
			return Identity{Kind: KindSession, AccountID: accountID}
		}
	}

	raw := extractBearer(r)
	if raw == "" {
		return Identity{
			Kind:   KindUnauthorized,
			Err:    "no authentication provided",
			Status: http.StatusUnauthorized,
		}
	}

	// Shape check before any lookup or hash work. Malformed input costs
	// nothing here.
	if !apikey.WellFormed(raw) {
		return Identity{
			Kind:   KindUnauthorized,
			Err:    "invalid API key",
			Status: http.StatusUnauthorized,
		}
	}

	// Throttle by IP ahead of the bcrypt comparison so brute-force attempts
	// can't buy expensive hash checks at will. A limiter backend failure
	// logs and lets the check proceed, like every other limiter here.
	res, err := a.KeyLimiter.Allow(r.Context(), "key-auth:"+ClientIP(r))
	if err != nil {
		a.Logger.Error("key auth rate check", "error", err)
	} else if !res.Allowed {
		return Identity{
			Kind:       KindUnauthorized,
			Err:        "too many requests",
			Status:     http.StatusTooManyRequests,
			RetryAfter: res.RetryAfter(time.Now()),
		}
	}

	if sym := a.matchKey(r.Context(), raw); sym != nil {
		go a.touchLastActive(sym.ID)
		id := sym.ID
		return Identity{Kind: KindAPIKey, AccountID: sym.AccountID, SymbientID: &id}
	}

	return Identity{
		Kind:   KindUnauthorized,
		Err:    "invalid API key",
		Status: http.StatusUnauthorized,
	}
}

// matchKey finds the symbient owning the credential: indexed prefix lookup
// first, then the legacy scan over rows keyed before prefixes existed.
func (a *Authenticator) matchKey(ctx context.Context, raw string) *models.Symbient {
	sym, err := a.Symbients.GetByKeyPrefix(ctx, apikey.Prefix(raw))
	switch {
	case err == nil:
		if sym.APIKeyHash != nil && apikey.Match(*sym.APIKeyHash, raw) {
			return sym
		}
	case !errors.Is(err, repository.ErrNotFound):
		a.Logger.Error("key prefix lookup", "error", err)
	}

	legacy, err := a.Symbients.ListLegacyKeyed(ctx)
	if err != nil {
		a.Logger.Error("legacy key scan", "error", err)
		return nil
	}
	for _, s := range legacy {
		if s.APIKeyHash != nil && apikey.Match(*s.APIKeyHash, raw) {
			if err := a.Symbients.BackfillKeyPrefix(ctx, s.ID, apikey.Prefix(raw)); err != nil {
				a.Logger.Error("backfill key prefix", "error", err)
			}
			return s
		}
	}
	return nil
}

// touchLastActive is detached from the response path; its failure is logged
// and otherwise ignored.
func (a *Authenticator) touchLastActive(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Symbients.TouchLastActive(ctx, id); err != nil {
		a.Logger.Warn("touch last active", "symbient_id", id, "error", err)
	}
}

// RequireIdentity rejects unresolved callers and stores the Identity in the
// request context for handlers.
func RequireIdentity(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := a.Resolve(r)
			if ident.Kind == KindUnauthorized {
				if ident.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(ident.RetryAfter))
				}
				http.Error(w, `{"error":"`+ident.Err+`"}`, ident.Status)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// IdentityFromCtx returns the resolved identity, or a zero unauthorized one.
func IdentityFromCtx(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxIdentityKey).(Identity); ok {
		return id
	}
	return Identity{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Err: "no authentication provided"}
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, ident)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
