package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/scanlog/internal/apperr"
	"github.com/MGallo-Code/scanlog/internal/auth"
	"github.com/MGallo-Code/scanlog/internal/config"
	"github.com/MGallo-Code/scanlog/internal/health"
	"github.com/MGallo-Code/scanlog/internal/ratelimit"
	"github.com/MGallo-Code/scanlog/internal/scans"
	"github.com/MGallo-Code/scanlog/internal/store"
	"github.com/MGallo-Code/scanlog/internal/token"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: cfg.LogLevel == slog.LevelDebug,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (ps, rdb) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// appStore is everything the handlers need from Postgres.
type appStore interface {
	auth.Store
	scans.Store
	health.Checker
}

// appCounter is everything the handlers need from Redis.
type appCounter interface {
	ratelimit.Counter
	health.Checker
}

// app bundles the wired handlers for buildRouter.
type app struct {
	auth        *auth.AuthHandler
	scans       *scans.ScanHandler
	health      *health.Handler
	limiter     *ratelimit.Limiter
	errs        apperr.Responder
	metrics     http.Handler
	corsOrigins []string
}

// newApp wires handlers over the given store and counter. Used by run() and smoke tests.
func newApp(cfg *config.Config, ps appStore, counter appCounter, reg *prometheus.Registry) *app {
	errs := apperr.Responder{Debug: !cfg.IsProduction()}
	ts := token.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	rl := ratelimit.New(counter, ratelimit.Policy{
		Limit:  int64(cfg.RateLimitMax),
		Window: cfg.RateLimitWindow,
	}, ratelimit.WithMetrics(ratelimit.NewMetrics(reg)))

	return &app{
		auth:        &auth.AuthHandler{PS: ps, TS: ts, Errs: errs},
		scans:       &scans.ScanHandler{PS: ps, RL: rl, Errs: errs},
		health:      &health.Handler{Postgres: ps, Redis: counter},
		limiter:     rl,
		errs:        errs,
		metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		corsOrigins: cfg.CORSOrigins,
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; one connection pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := newApp(cfg, ps, store.NewRedisCounter(rdb), reg)

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("scanlog listening", "addr", ln.Addr().String(), "app_env", cfg.AppEnv,
			"rate_limit", cfg.RateLimitMax, "rate_window", cfg.RateLimitWindow)
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	// Stop accepting, drain in-flight requests, give up after 30s.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() and from smoke tests.
func buildRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(a.errs.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	r.Method(http.MethodGet, "/health", a.health)
	r.Method(http.MethodGet, "/metrics", a.metrics)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.auth.Register)
		r.Post("/login", a.auth.Login)
		r.With(a.auth.RequireAuth).Get("/verify", a.auth.Verify)
	})

	// Authentication required routes
	r.Route("/scans", func(r chi.Router) {
		r.Use(a.auth.RequireAuth)
		// Limiter reads the identity injected by RequireAuth above
		r.With(a.limiter.Middleware(a.errs)).Post("/", a.scans.Create)
		r.Get("/history", a.scans.History)
		r.Get("/stats", a.scans.Stats)
	})

	return r
}
