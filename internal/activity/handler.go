package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, requester identity.Actor, filters Filters, page Page) (*ListResult, error)
	Stats(ctx context.Context, requester identity.Actor) (*Stats, error)
	Export(ctx context.Context, requester identity.Actor, filters Filters) (*ExportDocument, error)
	Cutoff() time.Time
	CountPending(ctx context.Context) (int64, error)
	ListPending(ctx context.Context) ([]*Entry, error)
	Purge(ctx context.Context, actor *identity.Actor) (*PurgeResult, error)
	DeleteLogs(ctx context.Context, actor identity.Actor, filters BulkDeleteFilters) (int64, error)
}

type ListResponse struct {
	Message string `json:"message"`
	*ListResult
}

type StatsResponse struct {
	Message string `json:"message"`
	Stats   *Stats `json:"stats"`
}

type PendingResponse struct {
	Message string    `json:"message"`
	Count   int64     `json:"count"`
	Cutoff  time.Time `json:"cutoff_date"`
	Logs    []*Entry  `json:"logs"`
}

type PurgeResponse struct {
	Message string `json:"message"`
	*PurgeResult
}

type DeleteResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted_count"`
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

func (h *Handler) filters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	f := Filters{
		ActionKind: q.Get("action"),
		District:   q.Get("district"),
		Division:   q.Get("division"),
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, internal.NewValidationFieldError("actor_id", "actor_id must be a positive integer", internal.ErrCodeInvalidID)
		}
		f.ActorID = id
	}

	var err error
	if f.From, err = h.TimeQuery(r, "from", false); err != nil {
		return f, err
	}
	if f.To, err = h.TimeQuery(r, "to", true); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	filters, err := h.filters(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	limit, offset := h.Pagination(r)

	result, err := h.Service.List(r.Context(), actor, filters, Page{Limit: limit, Offset: offset})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Message: "Activity logs retrieved successfully", ListResult: result})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	stats, err := h.Service.Stats(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, StatsResponse{Message: "Activity statistics retrieved successfully", Stats: stats})
}

// ExportLogs serves the export as a pretty-printed JSON attachment.
func (h *Handler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	filters, err := h.filters(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	doc, err := h.Service.Export(r.Context(), actor, filters)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		h.HandleServiceError(w, r, fmt.Errorf("encode export: %w", err))
		return
	}

	filename := fmt.Sprintf("activity-logs-%s.json", doc.ExportDate.Format(time.DateOnly))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.Logger.Error("failed to write export", "error", err)
	}
}

func (h *Handler) PendingDeletion(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Actor(w, r); !ok {
		return
	}

	logs, err := h.Service.ListPending(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PendingResponse{
		Message: "Pending deletion logs retrieved successfully",
		Count:   int64(len(logs)),
		Cutoff:  h.Service.Cutoff(),
		Logs:    logs,
	})
}

func (h *Handler) PurgePending(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Purge(r.Context(), &actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, PurgeResponse{
		Message:     fmt.Sprintf("Deleted %d activity logs older than %s", result.Deleted, result.Cutoff.Format(time.DateOnly)),
		PurgeResult: result,
	})
}

func (h *Handler) DeleteLogs(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	before, err := h.TimeQuery(r, "before", false)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	filters := BulkDeleteFilters{
		ActionKind: r.URL.Query().Get("action"),
		District:   r.URL.Query().Get("district"),
	}
	if before != nil {
		filters.Before = *before
	}

	n, err := h.Service.DeleteLogs(r.Context(), actor, filters)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, DeleteResponse{Message: fmt.Sprintf("Deleted %d activity logs", n), Deleted: n})
}
