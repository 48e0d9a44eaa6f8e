package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/campfire/backend/internal/auth"
	"github.com/campfire/backend/internal/config"
	"github.com/campfire/backend/internal/handlers"
	"github.com/campfire/backend/internal/mailer"
	"github.com/campfire/backend/internal/middleware"
	"github.com/campfire/backend/internal/ratelimit"
	"github.com/campfire/backend/internal/repository"
	"github.com/campfire/backend/internal/services"
)

// Per-caller limits. The global IP throttle in the boundary filter sits on
// top of these.
var (
	postLimit      = ratelimit.Config{Limit: 10, Window: time.Hour}
	commentLimit   = ratelimit.Config{Limit: 30, Window: time.Hour}
	voteLimit      = ratelimit.Config{Limit: 60, Window: time.Minute}
	magicLinkLimit = ratelimit.Config{Limit: 5, Window: 15 * time.Minute}
	keyAuthLimit   = ratelimit.Config{Limit: 10, Window: time.Minute}
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Rate limiters: Redis when configured, per-process memory otherwise.
	newLimiter := func(name string, lc ratelimit.Config) ratelimit.Limiter {
		return ratelimit.NewMemory(lc)
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("Invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Cannot reach Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to Redis, rate limits are shared across processes")
		newLimiter = func(name string, lc ratelimit.Config) ratelimit.Limiter {
			return ratelimit.NewRedis(rdb, name, lc)
		}
	} else {
		slog.Info("REDIS_URL not set, rate limits are per-process")
	}

	postLimiter := newLimiter("post", postLimit)
	commentLimiter := newLimiter("comment", commentLimit)
	voteLimiter := newLimiter("vote", voteLimit)
	linkLimiter := newLimiter("magic-link", magicLinkLimit)
	keyAuthLimiter := newLimiter("key-auth", keyAuthLimit)

	// Magic link delivery via River
	workers := river.NewWorkers()
	river.AddWorker(workers, mailer.NewMagicLinkWorker(&mailer.LogSender{Logger: logger}))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	enqueueEmail := func(ctx context.Context, email, link string) error {
		_, err := riverClient.Insert(ctx, mailer.MagicLinkArgs{Email: email, Link: link}, nil)
		return err
	}

	// Repositories
	accountRepo := repository.NewAccountRepo(pool)
	symbientRepo := repository.NewSymbientRepo(pool)
	postRepo := repository.NewPostRepo(pool)
	commentRepo := repository.NewCommentRepo(pool)
	voteRepo := repository.NewVoteRepo(pool)

	// Auth
	authRepo := auth.NewRepository(pool)
	linkBase := cfg.AppOrigin
	if linkBase == "" {
		linkBase = "http://localhost:" + cfg.Port
	}
	authSvc := auth.NewService(authRepo, accountRepo, enqueueEmail, cfg.JWTSecret, linkBase, cfg.SessionTTL)
	authHandler := auth.NewHandler(authSvc, linkLimiter, cfg.IsProduction(), logger)

	authn := &middleware.Authenticator{
		Sessions:   authSvc,
		Symbients:  symbientRepo,
		KeyLimiter: keyAuthLimiter,
		Logger:     logger,
	}

	// Handlers
	quota := services.NewQuotaService(symbientRepo)

	symbientHandler := &handlers.SymbientHandler{
		Symbients: symbientRepo,
		Accounts:  accountRepo,
		Logger:    logger,
	}
	postHandler := &handlers.PostHandler{
		Pool:      pool,
		Posts:     postRepo,
		Symbients: symbientRepo,
		Quota:     quota,
		Limiter:   postLimiter,
		Logger:    logger,
	}
	commentHandler := &handlers.CommentHandler{
		Comments:  commentRepo,
		Posts:     postRepo,
		Symbients: symbientRepo,
		Limiter:   commentLimiter,
		Logger:    logger,
	}
	voteHandler := &handlers.VoteHandler{
		Votes:  voteRepo,
		Posts:  postRepo,
		Logger: logger,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, authn, authHandler, symbientHandler, postHandler, commentHandler, voteHandler, voteLimiter, logger)

	boundary := &middleware.Boundary{
		AppOrigin:  cfg.AppOrigin,
		Production: cfg.IsProduction(),
		Throttle:   middleware.NewIPThrottle(100, time.Minute, 10*time.Minute),
		Logger:     logger,
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(boundary.Wrap(mux))

	// Start River client (delivers magic link emails)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	// Session garbage collection
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := authRepo.DeleteExpired(ctx); err != nil {
				slog.Error("Expired session cleanup failed", "error", err)
			}
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
