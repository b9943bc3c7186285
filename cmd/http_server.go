package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/survey-management/api"
	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/activity"
	"github.com/frahmantamala/survey-management/internal/activity/archive"
	"github.com/frahmantamala/survey-management/internal/app"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/maintenance"
	"github.com/frahmantamala/survey-management/pkg/logger"
	"github.com/frahmantamala/survey-management/pkg/metrics"
	"github.com/frahmantamala/survey-management/pkg/telemetry"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests. The maintenance scheduler runs in the same process when enabled.`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	App    *app.App
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	cfg := deps.Config
	lg := deps.Logger

	var (
		tracing       func(http.Handler) http.Handler
		traceShutdown func(context.Context) error
	)
	if cfg.Observability.Tracing.Enabled {
		traceShutdown, tracing, err = telemetry.Init(context.Background(), telemetry.Config{
			ServiceName:  cfg.Observability.Tracing.ServiceName,
			Endpoint:     cfg.Observability.Tracing.Endpoint,
			SamplingRate: cfg.Observability.Tracing.SamplingRate,
		})
		if err != nil {
			lg.Error("tracing disabled", "error", err)
		}
	}
	if cfg.Observability.Metrics.Enabled {
		metrics.Register()
	}

	var scheduler *maintenance.Scheduler
	if cfg.Scheduler.Enabled {
		s, err := deps.App.Scheduler(false)
		if err != nil {
			lg.Error("failed to build scheduler", "error", err)
			os.Exit(1)
		}
		s.Start()
		for _, e := range s.Entries() {
			lg.Info("scheduled job", "job", e.Name, "spec", e.Spec, "next", e.Next)
		}
		scheduler = s
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go deps.App.LoginLimiter.SweepEvery(sweepCtx, 5*time.Minute)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("Starting HTTP server", "address", addr, "env", cfg.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.App.Router(api.Handler(), tracing),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Server failed to start", "error", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		lg.Error("Server shutdown error", "error", err)
	}
	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			lg.Error("Scheduler shutdown error", "error", err)
		}
	}
	// export announcements still fanning out
	deps.App.Bus.Wait()
	if traceShutdown != nil {
		if err := traceShutdown(ctx); err != nil {
			lg.Error("Tracer shutdown error", "error", err)
		}
	}
	if err := deps.DB.Close(); err != nil {
		lg.Error("Database close error", "error", err)
	}

	lg.Info("Server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// initializeDependencies loads config, opens the database and assembles the app.
// The jobs command shares it with the server.
func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Env, config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := openGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	loc, err := clock.LoadLocation(config.Scheduler.Timezone)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	clk := clock.Real{Location: loc}

	archiver, err := newArchiver(ctx, config.Archive, clk.Now)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := app.New(app.Dependencies{
		Config:   config,
		DB:       gdb,
		SQLX:     db,
		Clock:    clk,
		Logger:   lg,
		Archiver: archiver,
	})

	return &Dependencies{
		Config: config,
		DB:     db,
		App:    a,
		Logger: lg,
	}, nil
}

// newArchiver returns a nil interface, not a nil *S3Archiver, when archiving is off.
func newArchiver(ctx context.Context, cfg internal.ArchiveConfig, now func() time.Time) (activity.Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	a, err := archive.NewFromConfig(ctx, archive.Config{
		Bucket:   cfg.Bucket,
		Prefix:   cfg.Prefix,
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize activity archive: %w", err)
	}
	return a, nil
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

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// openGorm wraps the sqlx pool so gorm repositories and sqlx queries share connections.
func openGorm(db *sqlx.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:  gormLogger.Default.LogMode(gormLogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return gdb, nil
}
