package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clubops/platform/internal"
	"github.com/clubops/platform/internal/auth"
	authPostgres "github.com/clubops/platform/internal/auth/postgres"
	"github.com/clubops/platform/internal/authz"
	"github.com/clubops/platform/internal/core/events"
	"github.com/clubops/platform/internal/mailer"
	"github.com/clubops/platform/internal/member"
	memberPostgres "github.com/clubops/platform/internal/member/postgres"
	"github.com/clubops/platform/internal/obs"
	"github.com/clubops/platform/internal/permission"
	permissionPostgres "github.com/clubops/platform/internal/permission/postgres"
	"github.com/clubops/platform/internal/subscription"
	subscriptionPostgres "github.com/clubops/platform/internal/subscription/postgres"
	"github.com/clubops/platform/internal/tenant"
	tenantPostgres "github.com/clubops/platform/internal/tenant/postgres"
	"github.com/clubops/platform/internal/transport/rest"
	"github.com/clubops/platform/internal/user"
	userPostgres "github.com/clubops/platform/internal/user/postgres"
	"github.com/clubops/platform/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config      *internal.Config
	DB          *sqlx.DB
	GormDB      *gorm.DB
	Redis       redis.UniversalClient
	Router      *chi.Mux
	AuthService *auth.Service
	Logger      *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Background sweep of expired refresh sessions
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go deps.AuthService.RunSessionSweeper(sweepCtx, deps.Config.Security.SweepInterval)

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		stopSweeper()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
		if err := deps.Redis.Close(); err != nil {
			slog.Error("Redis close error", "error", err)
		}
	case err := <-serverErrChan:
		stopSweeper()
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(envFromLogFormat(config.Observability.Logging.Format))
	lg := logger.LoggerWrapper()

	obs.Register()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	bus := events.NewEventBus(lg)

	// Credential & session core
	tokenGen := auth.NewJWTTokenGenerator(config.Security.AccessTokenSecret, config.Security.AccessTokenTTL)
	smtpMailer := mailer.NewSMTPMailer(config.SMTP, lg)
	limiter := auth.NewRedisLoginLimiter(rdb, config.Security.MaxLoginAttempts, config.Security.LoginCooldown)

	authService := auth.NewService(
		authPostgres.NewCredentialRepository(gormDB),
		authPostgres.NewOtpRepository(gormDB),
		authPostgres.NewTrustedDeviceRepository(gormDB),
		authPostgres.NewSessionRepository(gormDB),
		tokenGen,
		smtpMailer,
		limiter,
		bus,
		lg,
		auth.Options{
			OtpTTL:           config.Security.OtpTTL,
			RefreshTTL:       config.Security.RefreshTokenTTL,
			SessionRetention: config.Security.SessionRetention,
			BCryptCost:       config.Security.BCryptCost,
		},
	)

	// Authorization pipeline
	resolver := permission.NewResolver(permissionPostgres.NewRepository(gormDB))
	billing := subscription.NewCachedBillingReader(
		subscriptionPostgres.NewRepository(gormDB),
		config.Security.EntitlementCacheTTL,
	)
	gate := subscription.NewGate(billing)
	guard := tenant.NewGuard()
	owners := tenantPostgres.NewOwnerRepository(db)

	pipeline := authz.NewPipeline(
		authz.DefaultRegistry(),
		authService,
		resolver,
		gate,
		guard,
		bus,
		lg,
		config.Security.LookupTimeout,
	)
	authzMiddleware := authz.NewMiddleware(pipeline, owners, lg)

	// Domain services
	userService := user.NewService(userPostgres.NewRepository(db))
	memberService := member.NewService(memberPostgres.NewMemberRepository(gormDB), lg)

	router := chi.NewRouter()
	rest.RegisterAllRoutes(
		router,
		db.DB,
		rdb,
		auth.NewHandler(authService),
		user.NewHandler(userService),
		member.NewHandler(memberService),
		authzMiddleware,
		lg,
	)

	return &Dependencies{
		Config:      config,
		Logger:      lg,
		DB:          db,
		GormDB:      gormDB,
		Redis:       rdb,
		Router:      router,
		AuthService: authService,
	}, nil
}

func envFromLogFormat(format string) string {
	if format == "json" {
		return "production"
	}
	return "development"
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
