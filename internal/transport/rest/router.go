package rest

import (
	"net/http"

	"github.com/frahmantamala/survey-management/internal/account"
	"github.com/frahmantamala/survey-management/internal/activity"
	"github.com/frahmantamala/survey-management/internal/auth"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/notification"
	"github.com/frahmantamala/survey-management/internal/submission"
	"github.com/frahmantamala/survey-management/internal/transport"
	"github.com/frahmantamala/survey-management/internal/transport/middleware"
	"github.com/frahmantamala/survey-management/internal/transport/swagger"
	"github.com/frahmantamala/survey-management/pkg/metrics"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

const (
	APIPrefix   = "/api/v1"
	OpenAPIPath = "/openapi.yml"
	SwaggerPath = "/swagger/*"
)

type Handlers struct {
	Base         *transport.BaseHandler
	Health       *HealthHandler
	Auth         *auth.Handler
	Accounts     *account.Handler
	Submissions  *submission.Handler
	Activity     *activity.Handler
	Notification *notification.Handler
}

type Options struct {
	AllowedOrigins []string
	LoginLimiter   *middleware.RateLimiter
	MetricsPath    string // empty disables /metrics
	Tracing        func(http.Handler) http.Handler
	OpenAPI        http.Handler
}

var (
	admins   = []identity.Role{identity.RoleSuperAdmin, identity.RoleDistrictAdmin}
	everyone = []identity.Role{identity.RoleSuperAdmin, identity.RoleDistrictAdmin, identity.RoleDivisionUser}
)

func NewRouter(h Handlers, opts Options) *chi.Mux {
	router := chi.NewRouter()

	if opts.Tracing != nil {
		router.Use(opts.Tracing)
	}
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestContext)
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery(h.Base))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.MetricsPath != "" {
		router.Use(metrics.Instrument)
		router.Method(http.MethodGet, opts.MetricsPath, metrics.Handler())
	}

	if opts.OpenAPI != nil {
		router.Method(http.MethodGet, OpenAPIPath, opts.OpenAPI)
		router.Handle(SwaggerPath, swagger.Handler(OpenAPIPath))
	}

	router.Route(APIPrefix, func(r chi.Router) {
		r.Get("/health", h.Health.Health)
		r.Get("/ping", h.Health.Ping)

		r.Route("/auth", func(ar chi.Router) {
			ar.Group(func(lr chi.Router) {
				if opts.LoginLimiter != nil {
					lr.Use(opts.LoginLimiter.Middleware(h.Base))
				}
				lr.Post("/login", h.Auth.Login)
			})
			ar.With(h.Auth.OptionalAuth).Post("/logout", h.Auth.Logout)
			ar.With(h.Auth.AuthMiddleware).Get("/status", h.Auth.Status)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Route("/submissions", func(sr chi.Router) {
				sr.With(middleware.RequireRoles(h.Base, identity.RoleDivisionUser)).Post("/", h.Submissions.CreateSubmission)
				sr.Get("/", h.Submissions.ListSubmissions)
				sr.Get("/{id}", h.Submissions.GetSubmission)
			})

			pr.Route("/users", func(ur chi.Router) {
				ur.Put("/change-password", h.Accounts.ChangePassword)
				ur.Get("/{id}", h.Accounts.GetUser)

				ur.Group(func(mr chi.Router) {
					mr.Use(middleware.RequireRoles(h.Base, admins...))
					mr.Post("/", h.Accounts.CreateUser)
					mr.Get("/", h.Accounts.ListUsers)
					mr.Get("/subordinates", h.Accounts.GetSubordinates)
					mr.Put("/{id}", h.Accounts.UpdateUser)
					mr.Delete("/{id}", h.Accounts.DeleteUser)
					mr.Put("/{id}/reset-password", h.Accounts.ResetPassword)
				})
			})

			pr.Route("/activity-logs", func(lr chi.Router) {
				lr.With(middleware.RequireRoles(h.Base, everyone...)).Get("/", h.Activity.ListLogs)

				lr.Group(func(mr chi.Router) {
					mr.Use(middleware.RequireRoles(h.Base, admins...))
					mr.Get("/stats", h.Activity.Stats)
					mr.Get("/export", h.Activity.ExportLogs)
				})

				lr.Group(func(sr chi.Router) {
					sr.Use(middleware.RequireRoles(h.Base, identity.RoleSuperAdmin))
					sr.Get("/pending-deletion", h.Activity.PendingDeletion)
					sr.Delete("/pending-deletion", h.Activity.PurgePending)
					sr.Delete("/", h.Activity.DeleteLogs)
				})
			})

			pr.Route("/notifications", func(nr chi.Router) {
				nr.Get("/", h.Notification.ListNotifications)
				nr.Get("/unread-count", h.Notification.UnreadCount)
				nr.Put("/mark-all-read", h.Notification.MarkAllRead)
				nr.Delete("/clear-read", h.Notification.ClearRead)
				nr.Put("/{id}/read", h.Notification.MarkRead)
				nr.Delete("/{id}", h.Notification.DeleteNotification)
			})
		})
	})

	return router
}
