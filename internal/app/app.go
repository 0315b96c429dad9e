// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/identity-ledger/api/openapi"
	"github.com/bissquit/identity-ledger/internal/audit"
	auditpostgres "github.com/bissquit/identity-ledger/internal/audit/postgres"
	"github.com/bissquit/identity-ledger/internal/config"
	"github.com/bissquit/identity-ledger/internal/domain"
	"github.com/bissquit/identity-ledger/internal/identity"
	"github.com/bissquit/identity-ledger/internal/identity/jwt"
	identityredis "github.com/bissquit/identity-ledger/internal/identity/redis"
	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/bissquit/identity-ledger/internal/pkg/httputil"
	"github.com/bissquit/identity-ledger/internal/pkg/metrics"
	"github.com/bissquit/identity-ledger/internal/pkg/postgres"
	redispkg "github.com/bissquit/identity-ledger/internal/pkg/redis"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
	"github.com/bissquit/identity-ledger/internal/roles"
	rolespostgres "github.com/bissquit/identity-ledger/internal/roles/postgres"
	"github.com/bissquit/identity-ledger/internal/users"
	userspostgres "github.com/bissquit/identity-ledger/internal/users/postgres"
	"github.com/bissquit/identity-ledger/internal/version"
	"github.com/bissquit/identity-ledger/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// bootstrapPrefix marks records written by the startup bootstrap.
const bootstrapPrefix = "BOOT"

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	txnGenerator  *txn.Generator
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("initializing application", version.Get().LogAttrs()...)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(migrations.FS, cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redispkg.Connect(connectCtx, redispkg.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	} else {
		logger.Warn("redis disabled: refresh tokens cannot be revoked")
	}

	gen := txn.NewGenerator(cfg.Transaction.Prefix)
	txn.SetDefault(gen)

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         redisClient,
		txnGenerator:  gen,
		metricsCancel: metricsCancel,
	}

	go metrics.CollectDBPool(metricsCtx, db, metrics.DBPoolInterval)

	router, err := app.setupRouter(connectCtx)
	if err != nil {
		app.closeStores()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"transaction_prefix", a.txnGenerator.Prefix(),
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	a.db.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.TransactionMiddleware(a.txnGenerator))
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(httputil.Recoverer)
	r.Use(httputil.Timeout(a.config.Server.RequestTimeout))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Identity Ledger API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	usersService := users.NewService(userspostgres.NewRepository(a.db))
	usersHandler := users.NewHandler(usersService)

	rolesService := roles.NewService(rolespostgres.NewRepository(a.db), usersService)
	rolesHandler := roles.NewHandler(rolesService)

	auditHandler := audit.NewHandler(audit.NewService(auditpostgres.NewRepository(a.db)))

	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:            a.config.JWT.SecretKey,
		AccessTokenDuration:  a.config.JWT.AccessTokenDuration,
		RefreshTokenDuration: a.config.JWT.RefreshTokenDuration,
	})
	var revocations identity.RevocationStore
	if a.redis != nil {
		revocations = identityredis.NewRevocationStore(a.redis)
	}
	identityService := identity.NewService(usersService, jwtAuth, revocations)
	identityHandler := identity.NewHandler(identityService)

	if err := a.bootstrapAdmin(ctx, usersService, rolesService); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if a.config.RateLimit.Enabled {
				r.Use(httputil.RateLimitMiddleware(httputil.RateLimitConfig{
					Requests: a.config.RateLimit.Requests,
					Window:   a.config.RateLimit.Window,
					Burst:    a.config.RateLimit.Burst,
				}, httputil.ClientIP))
			}
			identityHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(identityService))

			usersHandler.RegisterRoutes(r)
			rolesHandler.RegisterRoutes(r)
			auditHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleNameAdmin))
				usersHandler.RegisterAdminRoutes(r)
				rolesHandler.RegisterAdminRoutes(r)
			})
		})
	})

	return r, nil
}

// bootstrapAdmin creates the configured administrator when missing and makes
// sure it holds the ADMIN role.
func (a *App) bootstrapAdmin(ctx context.Context, usersService *users.Service, rolesService *roles.Service) error {
	username := a.config.Bootstrap.AdminUsername
	if username == "" {
		return nil
	}

	ctx = txn.WithID(ctx, a.txnGenerator.GenerateWithPrefix(bootstrapPrefix))
	ctx = ctxlog.WithLogger(ctx, a.logger.With("transaction_id", txn.FromContext(ctx)))

	user, err := usersService.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		user, err = usersService.CreateUser(ctx, users.CreateUserInput{
			Username: username,
			Password: a.config.Bootstrap.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
	case err != nil:
		return fmt.Errorf("get admin: %w", err)
	}

	if user.HasRole(domain.RoleNameAdmin) {
		return nil
	}

	if _, err := rolesService.AssignRolesToUser(ctx, user.ID, []string{domain.RoleNameAdmin}); err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}
	a.logger.Info("bootstrap admin ready", "username", username)
	return nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Redis unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
