package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/transport"
	"github.com/frahmantamala/survey-management/pkg/logger"
)

// Recovery turns a handler panic into a logged 500 with the standard error body.
func Recovery(base *transport.BaseHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.FromContext(r.Context()).Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					slog.String("stack", string(debug.Stack())))

				base.WriteJSON(w, http.StatusInternalServerError, transport.ErrorResponse{
					Message: "Internal server error",
					Error:   internal.NewInternalError("Internal server error", nil),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
