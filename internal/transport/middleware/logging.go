package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/pkg/logger"
)

const maxLoggedBody = 4 << 10

// sensitiveFields are field names that should be filtered from logs
var sensitiveFields = []string{
	"password",
	"password_hash",
	"token",
	"authorization",
	"cookie",
	"secret",
	"session",
	"credential",
}

// RequestLogger logs one line per request at a level chosen by status. Bodies
// are logged at debug level only, with credentials masked.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lg := logger.FromContext(r.Context())

			debug := lg.Enabled(r.Context(), slog.LevelDebug)
			var reqBody string
			if debug && r.Body != nil {
				raw, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
				reqBody = filterSensitiveBody(raw)
			}

			rw := &responseWriter{ResponseWriter: w}
			if debug {
				rw.body = &bytes.Buffer{}
			}
			next.ServeHTTP(rw, r)

			status := rw.status()
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", rw.size,
			}
			if debug {
				attrs = append(attrs,
					"query", r.URL.RawQuery,
					"headers", filterSensitiveHeaders(r.Header),
					"request_body", reqBody,
					"response_body", filterSensitiveBody(rw.body.Bytes()),
				)
			}
			lg.Log(r.Context(), level, "http request", attrs...)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.body != nil && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseWriter) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			filtered[name] = "[FILTERED]"
			continue
		}
		filtered[name] = strings.Join(values, ", ")
	}
	return filtered
}

func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED]"
		}
		return string(body)
	}

	out, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[UNPRINTABLE]"
	}
	return string(out)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		filtered := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				filtered[key] = "[FILTERED]"
			} else {
				filtered[key] = filterSensitiveJSON(value)
			}
		}
		return filtered
	case []interface{}:
		filtered := make([]interface{}, len(v))
		for i, item := range v {
			filtered[i] = filterSensitiveJSON(item)
		}
		return filtered
	default:
		return v
	}
}
