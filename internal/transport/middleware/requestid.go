package middleware

import (
	"net"
	"net/http"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/pkg/logger"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const TraceHeader = "X-Trace-ID"

// RequestContext stamps every request with a trace id, a request-scoped logger
// and the client source that audit entries are attributed to. It expects chi's
// RealIP to have run first.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = middleware.GetReqID(r.Context())
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "trace_id", traceID)
		ctx = internal.ContextWithRequestSource(ctx, internal.RequestSource{
			Address:   clientAddress(r),
			UserAgent: r.UserAgent(),
		})

		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
