// Copyright (c) 2025-2026 Haven Retreats
// SPDX-License-Identifier: GPL-3.0-or-later

// Command haven runs the Haven Retreats site backend: the admin content
// API, the public content API and the email delivery worker.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"

	"github.com/havenretreats/haven-go/internal/cache"
	"github.com/havenretreats/haven-go/internal/config"
	"github.com/havenretreats/haven-go/internal/handler"
	"github.com/havenretreats/haven-go/internal/imaging"
	"github.com/havenretreats/haven-go/internal/logging"
	"github.com/havenretreats/haven-go/internal/mailer"
	"github.com/havenretreats/haven-go/internal/middleware"
	"github.com/havenretreats/haven-go/internal/model"
	"github.com/havenretreats/haven-go/internal/queue"
	"github.com/havenretreats/haven-go/internal/scheduler"
	"github.com/havenretreats/haven-go/internal/service"
	"github.com/havenretreats/haven-go/internal/session"
	"github.com/havenretreats/haven-go/internal/store"
	"github.com/havenretreats/haven-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func buildInfo() version.Info {
	return version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "haven - Haven Retreats site backend\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_SESSION_SECRET   Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_JOBS_SECRET      Job trigger endpoint secret (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_DB_PATH          SQLite database path (default: ./data/haven.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_ENV              Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_MAIL_API_URL     Transactional mail API endpoint (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HAVEN_REDIS_URL        Redis URL for distributed caching (optional)\n")
	}

	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("haven %s\n", buildInfo().String())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the audit trail
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	// Published-content cache: Redis when configured, in-process otherwise
	backend, err := cache.New(cache.Options{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTLDuration(),
		MaxEntries: cfg.CacheMaxSize,
	})
	if err != nil {
		slog.Warn("cache backend unavailable, falling back to memory", "error", err)
		backend, err = cache.New(cache.Options{
			Prefix:     cfg.CachePrefix,
			DefaultTTL: cfg.CacheTTLDuration(),
			MaxEntries: cfg.CacheMaxSize,
		})
		if err != nil {
			return fmt.Errorf("initializing cache: %w", err)
		}
	}
	contentCache := cache.NewContentCache(backend, cfg.CacheTTLDuration())
	defer func() {
		if err := contentCache.Close(); err != nil {
			slog.Error("closing cache", "error", err)
		}
	}()
	if cfg.UseRedisCache() {
		slog.Info("content cache initialized", "backend", "redis")
	} else {
		slog.Info("content cache initialized", "backend", "memory")
	}

	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	eventService := service.NewEventService(db)
	pageService := service.NewPageService(db, eventService, contentCache)
	retreatService := service.NewRetreatService(db, eventService, contentCache)

	// Outbound mail goes through the provider API when configured and
	// the log otherwise, so development never sends real email.
	var sender mailer.Sender
	if cfg.MailConfigured() {
		sender = mailer.NewAPISender(cfg.MailAPIURL, cfg.MailAPIKey)
		slog.Info("mail sender initialized", "backend", "api")
	} else {
		sender = mailer.NewLogSender(logger)
		slog.Info("mail sender initialized", "backend", "log")
	}
	emailQueue := queue.New(db, sender, logger, queue.Config{
		BatchSize:   int64(cfg.EmailBatchSize),
		BackoffBase: cfg.EmailBackoffBaseDuration(),
		BackoffCap:  cfg.EmailBackoffCapDuration(),
		MaxAttempts: int64(cfg.EmailMaxAttempts),
		From:        cfg.MailFrom,
		ReplyTo:     cfg.MailReplyTo,
	})

	sched := scheduler.New(db, emailQueue, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}
	processor := imaging.NewProcessor(cfg.UploadsDir)

	r := newRouter(routerDeps{
		cfg:            cfg,
		db:             db,
		sessionManager: sessionManager,
		events:         eventService,
		pages:          pageService,
		retreats:       retreatService,
		queue:          emailQueue,
		cache:          contentCache,
		processor:      processor,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // allow large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

type routerDeps struct {
	cfg            *config.Config
	db             *sql.DB
	sessionManager *scs.SessionManager
	events         *service.EventService
	pages          *service.PageService
	retreats       *service.RetreatService
	queue          *queue.Queue
	cache          *cache.ContentCache
	processor      *imaging.Processor
}

func newRouter(deps routerDeps) chi.Router {
	cfg := deps.cfg

	authHandler := handler.NewAuthHandler(deps.db, deps.sessionManager, deps.events)
	pageHandler := handler.NewPageHandler(deps.pages)
	retreatHandler := handler.NewRetreatHandler(deps.retreats)
	templateHandler := handler.NewTemplateHandler(deps.db)
	submissionHandler := handler.NewSubmissionHandler(deps.db, deps.retreats, deps.queue, deps.events, cfg.MailFrom)
	mediaHandler := handler.NewMediaHandler(deps.db, deps.processor)
	eventHandler := handler.NewEventHandler(deps.db)
	userHandler := handler.NewUserHandler(deps.db, deps.events)
	frontendHandler := handler.NewFrontendHandler(deps.pages, deps.retreats, deps.cache)
	jobsHandler := handler.NewJobsHandler(deps.queue)
	healthHandler := handler.NewHealthHandler(deps.db, buildInfo())

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(deps.sessionManager.LoadAndSave)

	r.Get("/healthz", healthHandler.Healthz)

	// Uploaded images are served directly from disk.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir)))
	r.Handle("/uploads/*", fileServer)

	// Public API: published content reads and form submissions.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(10, 30))

		r.Get("/pages/{slug}", frontendHandler.GetPage)
		r.Get("/preview/{token}", frontendHandler.Preview)
		r.Get("/retreats", frontendHandler.ListRetreats)
		r.Get("/retreats/{slug}", frontendHandler.GetRetreat)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(1, 5))
			r.Post("/contact", submissionHandler.Contact)
			r.Post("/retreats/{slug}/book", submissionHandler.Book)
		})
	})

	// Admin API: session-authenticated, CSRF-protected.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment())))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(1, 5))
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.sessionManager))
			r.Use(middleware.LoadUser(deps.sessionManager, deps.db))

			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			// Draft editing is open to editors and admins.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireEditor())

				r.Get("/pages", pageHandler.List)
				r.Post("/pages", pageHandler.Create)
				r.Get("/pages/{pageID}", pageHandler.Get)
				r.Post("/pages/{pageID}/draft", pageHandler.SaveDraft)
				r.Get("/pages/{pageID}/versions", pageHandler.ListVersions)
				r.Get("/pages/{pageID}/versions/{versionID}", pageHandler.GetVersion)
				r.Post("/pages/{pageID}/preview-tokens", pageHandler.CreatePreview)

				r.Get("/retreats", retreatHandler.List)
				r.Post("/retreats", retreatHandler.Create)
				r.Get("/retreats/{retreatID}", retreatHandler.Get)
				r.Post("/retreats/{retreatID}/draft", retreatHandler.SaveDraft)
				r.Get("/retreats/{retreatID}/versions", retreatHandler.ListVersions)

				r.Get("/submissions", submissionHandler.List)
				r.Get("/submissions/unread-count", submissionHandler.UnreadCount)
				r.Get("/submissions/{submissionID}", submissionHandler.Get)
				r.Put("/submissions/{submissionID}/status", submissionHandler.UpdateStatus)

				r.Post("/media", mediaHandler.Upload)
				r.Get("/media", mediaHandler.List)
				r.Get("/media/{mediaID}", mediaHandler.Get)
				r.Delete("/media/{mediaID}", mediaHandler.Delete)
			})

			// Publish pointer moves and account management are admin-only.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoleWithEventLog(model.RoleAdmin, deps.events))

				r.Post("/pages/{pageID}/publish", pageHandler.Publish)
				r.Post("/pages/{pageID}/rollback", pageHandler.Rollback)
				r.Post("/pages/{pageID}/unpublish", pageHandler.Unpublish)

				r.Post("/retreats/{retreatID}/publish", retreatHandler.Publish)
				r.Post("/retreats/{retreatID}/rollback", retreatHandler.Rollback)
				r.Post("/retreats/{retreatID}/unpublish", retreatHandler.Unpublish)

				r.Get("/templates", templateHandler.List)
				r.Post("/templates", templateHandler.Create)
				r.Get("/templates/{templateID}", templateHandler.Get)
				r.Put("/templates/{templateID}", templateHandler.Update)
				r.Delete("/templates/{templateID}", templateHandler.Delete)

				r.Get("/users", userHandler.List)
				r.Post("/users", userHandler.Create)
				r.Get("/users/{userID}", userHandler.Get)
				r.Put("/users/{userID}", userHandler.Update)
				r.Put("/users/{userID}/password", userHandler.UpdatePassword)
				r.Delete("/users/{userID}", userHandler.Delete)

				r.Get("/events", eventHandler.List)
			})
		})
	})

	// Operational trigger for the email queue, authenticated by the
	// shared jobs secret rather than a session.
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.JobsAuth(cfg.JobsSecret))
		r.Post("/email/run", jobsHandler.RunEmail)
	})

	return r
}
