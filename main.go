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

	"github.com/MGallo-Code/gatekeep/internal/auth"
	"github.com/MGallo-Code/gatekeep/internal/config"
	"github.com/MGallo-Code/gatekeep/internal/identity"
	"github.com/MGallo-Code/gatekeep/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Embeds the audit log migrations into the binary.

//go:embed migrations/*.sql
var migrationsDir embed.FS

// sweepInterval is how often expired sessions and idle rate limit buckets are dropped.
const sweepInterval = time.Minute

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	idp := identity.NewDiscordClient(identity.DiscordConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		BotToken:     cfg.BotToken,
		APIURL:       cfg.APIURL,
		Timeout:      cfg.ProviderTimeout,
	})

	sessions := store.NewMemoryStore(cfg.SessionTTL)

	// Rate limiting: shared Redis counters when configured, per-process buckets otherwise.
	var rl auth.RateLimiter
	var memRL *store.MemoryRateLimiter
	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		rl = store.NewRedisRateLimiter(rdb)
	} else {
		memRL = store.NewMemoryRateLimiter()
		rl = memRL
	}

	// Audit log: Postgres when configured, discarded otherwise.
	var audit auth.Auditor = store.NopAuditor{}
	if cfg.DatabaseURL != "" {
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
		audit = ps
	}

	h := &auth.Gateway{
		IDP:          idp,
		Sessions:     sessions,
		Audit:        audit,
		RL:           rl,
		GroupID:      cfg.GuildID,
		RequiredTags: cfg.AllowedRoleIDs,
		AppURL:       cfg.AppURL,
		DeniedURL:    cfg.DeniedURL,
		LoginLimit: store.RateLimit{
			MaxAttempts: cfg.RateLoginMax,
			Window:      cfg.RateLoginWindow,
			LockoutTTL:  cfg.RateLoginLockout,
		},
		InsecureCookies: cfg.InsecureCookies,
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: buildRouter(h, cfg.StaticDir)}

	// Sweeper goroutine; drops expired sessions and idle rate limit buckets.
	// Cancelled via sweepCtx when run() returns.
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := sessions.Sweep(sweepCtx); n > 0 {
					slog.Debug("session sweep complete", "removed", n)
				}
				if memRL != nil {
					memRL.Sweep(cfg.RateLoginWindow + cfg.RateLoginLockout)
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gatekeep listening",
			"addr", ln.Addr().String(),
			"redis", cfg.RedisURL != "",
			"audit", cfg.DatabaseURL != "",
			"required_roles", len(cfg.AllowedRoleIDs),
		)
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
func buildRouter(h *auth.Gateway, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.CheckHealth)

	r.Route("/api", func(r chi.Router) {
		r.With(h.RateLimit("login")).Get("/login", h.Login)
		r.With(h.RateLimit("callback")).Get("/callback", h.Callback)
		r.Get("/whoami", h.Whoami)
		// Path the portal shell polls on page load.
		r.Get("/me", h.Whoami)
		r.Post("/logout", h.Logout)

		// Collaborator routes; RequireAuth re-validates membership per request.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/principal", h.Principal)
		})
	})

	// Portal shell. Its own code, not this gateway, decides what to render.
	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}
