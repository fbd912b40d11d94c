// Copyright 2026 The Backoffice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patliputra/backoffice/internal/audit"
	"github.com/patliputra/backoffice/internal/backend"
	"github.com/patliputra/backoffice/internal/config"
	"github.com/patliputra/backoffice/internal/guard"
	"github.com/patliputra/backoffice/internal/identity"
	"github.com/patliputra/backoffice/internal/observability/logger"
	"github.com/patliputra/backoffice/internal/observability/metrics"
	"github.com/patliputra/backoffice/internal/observability/tracing"
	"github.com/patliputra/backoffice/internal/rbac"
	"github.com/patliputra/backoffice/internal/session"
	"github.com/patliputra/backoffice/internal/store/memory"
	"github.com/patliputra/backoffice/internal/store/postgres"
	"github.com/patliputra/backoffice/internal/token"
	transportHTTP "github.com/patliputra/backoffice/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		err = serve(ctx, cfg)
	case "migrate":
		err = runMigrate(ctx, cfg)
	case "bootstrap":
		err = runBootstrap(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %q (want serve, migrate or bootstrap)", command)
	}
	if err != nil {
		slog.Error(command+" failed", logger.Error(err))
		os.Exit(1)
	}
}

// stores holds the repositories for the configured driver.
type stores struct {
	users    identity.UserRepository
	sessions session.Repository
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory store; accounts and sessions are lost on restart")
		return &stores{
			users:    memory.NewUserRepository(),
			sessions: memory.NewSessionRepository(),
			close:    func() {},
		}, nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database")
	return &stores{
		users:    postgres.NewUserRepository(db),
		sessions: postgres.NewSessionRepository(db),
		close:    db.Close,
	}, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func newIdentityService(cfg *config.Config, users identity.UserRepository, auditLogger audit.Logger) *identity.Service {
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
	return identity.NewService(
		users,
		passwordHasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
}

func loadMatrix(cfg *config.Config) (*rbac.Matrix, error) {
	if cfg.RBAC.MatrixFile == "" {
		return rbac.Default, nil
	}
	m, err := rbac.LoadMatrix(cfg.RBAC.MatrixFile)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded permission matrix", logger.MatrixFile(cfg.RBAC.MatrixFile))
	return m, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting backoffice gateway")

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
		Endpoint:       cfg.Observability.OTELEndpoint,
		Insecure:       cfg.Observability.OTELInsecure,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		slog.Info("tracing configured", logger.String("exporting", fmt.Sprint(tracer.Enabled())))
		defer tracer.Shutdown(context.Background())
	}

	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	matrix, err := loadMatrix(cfg)
	if err != nil {
		return err
	}

	auditLogger := audit.NewSlogLogger()
	identityService := newIdentityService(cfg, st.users, auditLogger)
	sessionService := session.NewService(st.sessions, auditLogger, cfg.Session.Lifetime, cfg.Session.IdleTimeout)

	tokens, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	bootstrapService := identity.NewBootstrapService(identityService, auditLogger)
	if err := bootstrapService.Bootstrap(ctx, identity.BootstrapConfigFromEnv()); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	g := guard.New(matrix,
		guard.WithLoginPath(cfg.Console.LoginPath),
		guard.WithRecorder(meter),
		guard.WithAuditLogger(auditLogger),
	)

	proxies, err := cfg.RateLimit.Proxies()
	if err != nil {
		return err
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go rateLimiter.Run(ctx)

	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		tokens,
		g,
		backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout),
		auditLogger,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSiteMode(cfg.Session.CookieSameSite),
		},
	).WithRecorder(meter).WithTrustedProxies(proxies)

	router := transportHTTP.NewRouter(handler, rateLimiter, consoleFS(cfg.Console.StaticDir))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go cleanupSessions(ctx, sessionService)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	slog.Info("server stopped")
	return nil
}

func cleanupSessions(ctx context.Context, sessionService *session.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessionService.CleanupExpired(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "failed to cleanup expired sessions", logger.Error(err))
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "removed expired sessions", logger.RowsAffected(n))
			}
		}
	}
}

// consoleFS returns the console bundle, or nil when it is not installed.
func consoleFS(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.Warn("console bundle not found; serving API only", logger.String("dir", dir))
		return nil
	}
	return os.DirFS(dir)
}

func sameSiteMode(s string) http.SameSite {
	switch s {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func runBootstrap(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	auditLogger := audit.NewSlogLogger()
	bootstrapService := identity.NewBootstrapService(newIdentityService(cfg, st.users, auditLogger), auditLogger)
	return bootstrapService.Bootstrap(ctx, identity.BootstrapConfigFromEnv())
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s", config.DriverPostgres)
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("applying initial schema")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	slog.Info("migration successful")
	return nil
}
