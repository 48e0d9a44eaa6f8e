package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/campfire/backend/internal/ratelimit"
)

// KeyFunc derives the rate-limit key for a request. Runs after identity
// resolution, so keys may use IdentityFromCtx.
type KeyFunc func(r *http.Request) string

// KeyByAccount keys a limit on the authenticated account.
func KeyByAccount(r *http.Request) string {
	return "account:" + IdentityFromCtx(r.Context()).AccountID.String()
}

// KeyByIP keys a limit on the caller IP.
func KeyByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// RateLimit enforces a per-endpoint budget, answering 429 with a
// Retry-After hint when exceeded. Limiter failures log and let the request
// through; the boundary backstop still applies.
func RateLimit(limiter ratelimit.Limiter, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), key(r))
			if err != nil {
				logger.Error("rate limit check", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(time.Now())))
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
