package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shindakun/loginform/internal/auth"
	"github.com/shindakun/loginform/internal/authclient"
	"github.com/shindakun/loginform/internal/config"
	"github.com/shindakun/loginform/internal/metrics"
	"github.com/shindakun/loginform/internal/models"
	"github.com/shindakun/loginform/internal/mounts"
	"github.com/shindakun/loginform/internal/storage"
	"github.com/shindakun/loginform/internal/version"
	"github.com/shindakun/loginform/internal/web/handlers"
	webmiddleware "github.com/shindakun/loginform/internal/web/middleware"
	"golang.org/x/sync/errgroup"
)

// pruneInterval is how often old login attempts are removed
const pruneInterval = time.Hour

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "[loginform] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("Starting login form %s...", version.GetFullVersion())

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Println("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Println("Server exited successfully")
}

// run wires the application together and serves until ctx is done
func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	// Initialize audit database
	var db *sql.DB
	if cfg.Storage.AuditEnabled {
		logger.Printf("Initializing database at: %s", cfg.Storage.DBPath)
		var err error
		db, err = storage.InitDB(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()
		logAuditSummary(db, logger)
	}

	// Initialize login service client
	limiter := authclient.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration, cfg.RateLimit.Burst)
	client := authclient.New(cfg.Login.EndpointURL, cfg.Login.RequestTimeout, limiter)
	logger.Printf("Login service: %s", client.Endpoint())
	if limiter != nil {
		logger.Printf("Outbound rate limit: %s", limiter)
	}

	// Initialize mount registry
	registry := mounts.NewRegistry(mounts.Options{
		Max:        cfg.Mounts.Max,
		TTL:        cfg.Mounts.TTL,
		CookieName: cfg.Cookie.Name,
		Cookie:     cfg.CookieOptions(),
	}, client, db, logger)
	defer registry.Close()

	// Initialize session manager
	sessionManager := auth.InitSessions(cfg.Session.Secret, cfg.Session.MaxAge, cfg.IsHTTPS(), http.SameSiteLaxMode)
	logger.Println("Session manager initialized")

	// Initialize handlers
	h, err := handlers.New(registry, cfg.Server.Security.CSRFFieldName, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// HTTP server configuration
	srv := &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      newRouter(cfg, h, registry, sessionManager, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("Server starting on %s", cfg.GetBaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()

		logger.Println("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if db != nil && cfg.Storage.Retention > 0 {
		g.Go(func() error {
			pruneLoop(gctx, db, cfg.Storage.Retention, logger)
			return nil
		})
	}

	return g.Wait()
}

// newRouter builds the HTTP routes and middleware stack
func newRouter(cfg *config.Config, h *handlers.Handlers, registry *mounts.Registry, sessionManager *auth.SessionManager, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(webmiddleware.LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(webmiddleware.SecurityHeaders(cfg))
	r.Use(webmiddleware.MaxBytesMiddleware(cfg.Server.Security.MaxRequestBytes))

	// Unauthenticated operational routes
	r.Get("/healthz", h.Healthz)
	r.Get("/static/*", h.ServeStatic)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// Login form routes (tied to the browser that mounted them)
	r.Group(func(r chi.Router) {
		if cfg.Server.Security.CSRFEnabled {
			r.Use(webmiddleware.CSRFProtection(
				[]byte(cfg.Session.Secret)[:32],
				cfg.IsHTTPS(),
				cfg.Server.Security.CSRFFieldName,
			))
		}
		r.Use(webmiddleware.RequireBrowser(sessionManager))

		r.Get("/", h.Landing)
		r.Route("/login/{id}", func(r chi.Router) {
			r.Use(webmiddleware.LoadMount(registry))
			r.Get("/", h.Page)
			r.Delete("/", h.Unmount)
			r.Get("/view", h.View)
			r.Post("/field", h.Field)
			r.Post("/submit", h.Submit)
		})
	})

	// 404 handler (must be last)
	r.NotFound(h.NotFound)

	return r
}

// pruneLoop removes login attempts older than retention until ctx is done
func pruneLoop(ctx context.Context, db *sql.DB, retention time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		pruneAttempts(db, retention, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneAttempts(db *sql.DB, retention time.Duration, logger *log.Logger) {
	n, err := storage.PruneAttempts(db, time.Now().Add(-retention))
	if err != nil {
		logger.Printf("Failed to prune login attempts: %v", err)
		return
	}
	if n > 0 {
		logger.Printf("Pruned %d login attempts older than %s", n, retention)
	}
}

// logAuditSummary reports the audit schema and the stored attempts per outcome
func logAuditSummary(db *sql.DB, logger *log.Logger) {
	v, err := storage.SchemaVersion(db)
	if err != nil {
		logger.Printf("Failed to read schema version: %v", err)
		return
	}

	counts, err := storage.CountAttempts(db)
	if err != nil {
		logger.Printf("Failed to count login attempts: %v", err)
		return
	}

	logger.Printf("Database initialized successfully (schema v%d, %d successful, %d rejected, %d failed attempts)",
		v,
		counts[models.AttemptOutcomeSuccess],
		counts[models.AttemptOutcomeRejected],
		counts[models.AttemptOutcomeFailed],
	)
}
