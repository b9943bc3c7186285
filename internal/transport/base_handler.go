package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/pkg/logger"
	"github.com/go-chi/chi"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

type ErrorResponse struct {
	Message string             `json:"message"`
	Error   *internal.AppError `json:"error"`
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", message)
	} else {
		h.Logger.Debug("http error", "status", status, "message", message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"code":    status,
		"message": message,
	}

	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// HandleServiceError maps AppErrors to their status; anything else is logged
// and reported as a generic internal error.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := internal.IsAppError(err); ok && appErr.Type != internal.ErrorTypeInternal {
		h.WriteJSON(w, appErr.StatusCode, ErrorResponse{
			Message: appErr.GetDetailedMessage(),
			Error:   appErr,
		})
		return
	}

	logger.FromContext(r.Context()).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err)
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}

// DecodeJSON reads the body into dst, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.NewValidationError("request body is required", internal.ErrCodeValidationFailed)
		}
		return internal.NewValidationError("invalid request body: "+err.Error(), internal.ErrCodeValidationFailed)
	}
	return nil
}

// Actor returns the authenticated actor or writes a 401.
func (h *BaseHandler) Actor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, r, internal.ErrUnauthenticated)
		return identity.Actor{}, false
	}
	return actor, true
}

func (h *BaseHandler) IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.NewValidationError("invalid "+name+": "+raw, internal.ErrCodeInvalidID)
	}
	return id, nil
}

// Pagination reads limit/offset query parameters.
func (h *BaseHandler) Pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 1 && limit > 0 && offset == 0 {
		offset = (page - 1) * limit
	}
	return limit, offset
}

// TimeQuery parses an RFC3339 timestamp or a plain date. Empty yields nil.
// With inclusiveEnd a plain date means the end of that day.
func (h *BaseHandler) TimeQuery(r *http.Request, name string, inclusiveEnd bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if inclusiveEnd {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	return nil, internal.NewValidationFieldError(name, name+" must be a date (YYYY-MM-DD) or RFC3339 timestamp", internal.ErrCodeInvalidDate)
}

// BoolQuery returns nil when the parameter is absent or unparsable.
func (h *BaseHandler) BoolQuery(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
