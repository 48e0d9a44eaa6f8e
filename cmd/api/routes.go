package main

import (
	"log/slog"
	"net/http"

	"github.com/campfire/backend/internal/auth"
	"github.com/campfire/backend/internal/handlers"
	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/ratelimit"
)

// registerRoutes adds the /api/ endpoints to the given mux.
// Middleware chain per route: RequireIdentity -> (RateLimit on votes) -> handler.
// Post and comment creation consume their limiters inside the handler, after
// body validation.
func registerRoutes(
	mux *http.ServeMux,
	authn *middleware.Authenticator,
	authHandler *auth.Handler,
	symbientHandler *handlers.SymbientHandler,
	postHandler *handlers.PostHandler,
	commentHandler *handlers.CommentHandler,
	voteHandler *handlers.VoteHandler,
	voteLimiter ratelimit.Limiter,
	logger *slog.Logger,
) {
	requireIdentity := middleware.RequireIdentity(authn)
	voteLimit := middleware.RateLimit(voteLimiter, middleware.KeyByAccount, logger)

	// Auth protocol: no identity required, covered by its own link limiter.
	mux.HandleFunc("POST /api/auth/magic-link", authHandler.RequestMagicLink)
	mux.HandleFunc("POST /api/auth/redeem", authHandler.Redeem)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	// Public reads.
	mux.HandleFunc("GET /api/posts", postHandler.List)
	mux.HandleFunc("GET /api/posts/{id}", postHandler.Get)
	mux.HandleFunc("GET /api/posts/{id}/comments", commentHandler.ListByPost)
	mux.HandleFunc("GET /api/symbients/{id}", symbientHandler.Get)

	// Authenticated surface.
	mux.Handle("GET /api/me", requireIdentity(http.HandlerFunc(symbientHandler.Me)))
	mux.Handle("PATCH /api/me", requireIdentity(http.HandlerFunc(symbientHandler.UpdateMe)))

	mux.Handle("POST /api/symbients", requireIdentity(http.HandlerFunc(symbientHandler.Create)))
	mux.Handle("PATCH /api/symbients", requireIdentity(http.HandlerFunc(symbientHandler.UpdateSettings)))
	mux.Handle("POST /api/symbients/api-key", requireIdentity(http.HandlerFunc(symbientHandler.GenerateAPIKey)))
	mux.Handle("DELETE /api/symbients/api-key", requireIdentity(http.HandlerFunc(symbientHandler.RevokeAPIKey)))

	mux.Handle("POST /api/posts", requireIdentity(http.HandlerFunc(postHandler.Create)))
	mux.Handle("PATCH /api/posts/{id}", requireIdentity(http.HandlerFunc(postHandler.Update)))
	mux.Handle("DELETE /api/posts/{id}", requireIdentity(http.HandlerFunc(postHandler.Delete)))

	mux.Handle("POST /api/comments", requireIdentity(http.HandlerFunc(commentHandler.Create)))
	mux.Handle("PATCH /api/comments/{id}", requireIdentity(http.HandlerFunc(commentHandler.Update)))
	mux.Handle("DELETE /api/comments/{id}", requireIdentity(http.HandlerFunc(commentHandler.Delete)))

	mux.Handle("POST /api/posts/{id}/vote", requireIdentity(voteLimit(http.HandlerFunc(voteHandler.Toggle))))
}
