// Package app assembles repositories, services and handlers into a runnable
// server. The cmd package and the end-to-end tests share it.
package app

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/account"
	accountPostgres "github.com/frahmantamala/survey-management/internal/account/postgres"
	"github.com/frahmantamala/survey-management/internal/activity"
	activityPostgres "github.com/frahmantamala/survey-management/internal/activity/postgres"
	"github.com/frahmantamala/survey-management/internal/auth"
	"github.com/frahmantamala/survey-management/internal/core/clock"
	"github.com/frahmantamala/survey-management/internal/core/events"
	"github.com/frahmantamala/survey-management/internal/maintenance"
	"github.com/frahmantamala/survey-management/internal/notification"
	notificationPostgres "github.com/frahmantamala/survey-management/internal/notification/postgres"
	"github.com/frahmantamala/survey-management/internal/submission"
	submissionPostgres "github.com/frahmantamala/survey-management/internal/submission/postgres"
	"github.com/frahmantamala/survey-management/internal/transport"
	"github.com/frahmantamala/survey-management/internal/transport/middleware"
	"github.com/frahmantamala/survey-management/internal/transport/rest"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config   *internal.Config
	DB       *gorm.DB
	SQLX     *sqlx.DB
	Clock    clock.Clock
	Logger   *slog.Logger
	Archiver activity.Archiver // nil disables archiving
}

type App struct {
	Config *internal.Config
	Logger *slog.Logger
	Clock  clock.Clock
	Bus    *events.EventBus

	Accounts      *account.Service
	Recorder      *activity.Recorder
	Activity      *activity.Service
	Fanout        *notification.Fanout
	Notifications *notification.Service
	Submissions   *submission.Service
	Auth          *auth.Service

	Handlers     rest.Handlers
	LoginLimiter *middleware.RateLimiter
}

func New(deps Dependencies) *App {
	cfg := deps.Config
	logger := deps.Logger
	clk := deps.Clock

	bus := events.NewEventBus(logger.With("component", "events"))

	activityRepo := activityPostgres.NewActivityRepository(deps.DB)
	recorder := activity.NewRecorder(activityRepo, clk, logger.With("component", "audit"))

	accounts := account.NewService(accountPostgres.NewAccountRepository(deps.DB), recorder, bus, clk,
		cfg.Security.BCryptCost, logger.With("component", "accounts"))

	fanout := notification.NewFanout(notificationPostgres.NewNotificationRepository(deps.DB), accounts, clk,
		logger.With("component", "fanout"))
	notification.NewSubscriber(fanout, logger.With("component", "notification-subscriber")).Register(bus)

	activitySvc := activity.NewService(activityRepo, activityPostgres.NewStatsRepository(deps.SQLX), recorder,
		bus, fanout, deps.Archiver, clk, logger.With("component", "activity"))

	submissions := submission.NewService(submissionPostgres.NewSubmissionRepository(deps.DB), recorder, bus, clk,
		logger.With("component", "submissions"))

	notifications := notification.NewService(notificationPostgres.NewNotificationRepository(deps.DB), clk,
		logger.With("component", "notifications"))

	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.AccessTokenDuration, clk.Now)
	authSvc := auth.NewService(accounts, tokens, recorder, bus, logger.With("component", "auth"))

	base := transport.NewBaseHandler(logger)
	checks := map[string]rest.Pinger{}
	if deps.SQLX != nil {
		checks["database"] = deps.SQLX
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Clock:         clk,
		Bus:           bus,
		Accounts:      accounts,
		Recorder:      recorder,
		Activity:      activitySvc,
		Fanout:        fanout,
		Notifications: notifications,
		Submissions:   submissions,
		Auth:          authSvc,
		Handlers: rest.Handlers{
			Base:   base,
			Health: rest.NewHealthHandler(base, checks),
			Auth: auth.NewHandler(base, authSvc, auth.CookieConfig{
				Name:   cfg.Security.CookieName,
				Secure: cfg.Security.CookieSecure,
			}),
			Accounts:     account.NewHandler(base, accounts),
			Submissions:  submission.NewHandler(base, submissions),
			Activity:     activity.NewHandler(base, activitySvc),
			Notification: notification.NewHandler(base, notifications),
		},
		LoginLimiter: middleware.NewRateLimiter(cfg.Security.LoginRatePerMinute, cfg.Security.LoginBurst),
	}
}

// Router builds the HTTP surface. openAPI and tracing may be nil.
func (a *App) Router(openAPI http.Handler, tracing func(http.Handler) http.Handler) *chi.Mux {
	opts := rest.Options{
		AllowedOrigins: a.Config.Server.Origins(),
		LoginLimiter:   a.LoginLimiter,
		Tracing:        tracing,
		OpenAPI:        openAPI,
	}
	if a.Config.Observability.Metrics.Enabled {
		opts.MetricsPath = a.Config.Observability.Metrics.Path
	}
	return rest.NewRouter(a.Handlers, opts)
}

// Scheduler registers every maintenance job in the configured time zone.
// forcePurge lifts the month-end guard for manual runs.
func (a *App) Scheduler(forcePurge bool) (*maintenance.Scheduler, error) {
	return maintenance.NewFromConfig(a.Config.Scheduler, maintenance.Dependencies{
		Retention:   a.Activity,
		Submissions: a.Submissions,
		Accounts:    a.Accounts,
		Notifier:    a.Fanout,
		Clock:       a.Clock,
		Logger:      a.Logger.With("component", "scheduler"),
		ForcePurge:  forcePurge,
	})
}
