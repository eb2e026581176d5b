package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/clubops/platform/internal/auth"
	authPostgres "github.com/clubops/platform/internal/auth/postgres"
	"github.com/clubops/platform/internal/core/events"
	"github.com/clubops/platform/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers like the session sweeper and the event bus monitor.`,
}

// Session sweeper worker command
var sweeperWorkerCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Start the session sweeper",
	Long:  `Periodically delete refresh sessions that expired past the retention window`,
	Run: func(cmd *cobra.Command, args []string) {
		startSessionSweeper()
	},
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus and log audit events as they arrive`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var sweepInterval time.Duration

func startSessionSweeper() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init orm: %v\n", err)
		os.Exit(1)
	}

	interval := config.Security.SweepInterval
	if sweepInterval > 0 {
		interval = sweepInterval
	}

	svc := auth.NewService(
		authPostgres.NewCredentialRepository(gormDB),
		authPostgres.NewOtpRepository(gormDB),
		authPostgres.NewTrustedDeviceRepository(gormDB),
		authPostgres.NewSessionRepository(gormDB),
		nil, nil, nil,
		events.NewEventBus(lg),
		lg,
		auth.Options{SessionRetention: config.Security.SessionRetention},
	)

	ctx, cancel := context.WithCancel(context.Background())

	lg.Info("session sweeper started", "interval", interval)
	go svc.RunSessionSweeper(ctx, interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("received signal, shutting down session sweeper", "signal", sig)
	cancel()
}

func startEventWorker() {
	_, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	lg := logger.LoggerWrapper()

	eventBus := events.NewEventBus(lg)

	for _, eventType := range []string{
		events.EventTypeLoginFailed,
		events.EventTypeAccessDenied,
		events.EventTypeSessionRevoked,
	} {
		eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
			lg.Info("audit event",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"payload", event.Payload())
			return nil
		})
	}

	lg.Info("event bus worker started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("received signal, shutting down event bus", "signal", sig)
}

func init() {
	sweeperWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval (overrides config)")

	workerCmd.AddCommand(sweeperWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
