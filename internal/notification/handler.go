package notification

import (
	"context"
	"net/http"

	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, actor identity.Actor, filters ListFilters, page Page) (*ListResult, error)
	UnreadCount(ctx context.Context, actor identity.Actor) (int64, error)
	MarkRead(ctx context.Context, actor identity.Actor, id int64) (*Notification, error)
	MarkAllRead(ctx context.Context, actor identity.Actor) (int64, error)
	Delete(ctx context.Context, actor identity.Actor, id int64) error
	ClearRead(ctx context.Context, actor identity.Actor) (int64, error)
}

type ListResponse struct {
	Message string `json:"message"`
	*ListResult
}

type UnreadCountResponse struct {
	Message     string `json:"message"`
	UnreadCount int64  `json:"unread_count"`
}

type NotificationResponse struct {
	Message      string        `json:"message"`
	Notification *Notification `json:"notification"`
}

type CountResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	filters := ListFilters{Category: Category(r.URL.Query().Get("category"))}
	if unread := h.BoolQuery(r, "unread_only"); unread != nil {
		filters.UnreadOnly = *unread
	}
	limit, offset := h.Pagination(r)

	result, err := h.Service.List(r.Context(), actor, filters, Page{Limit: limit, Offset: offset})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Message: "Notifications retrieved successfully", ListResult: result})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	n, err := h.Service.UnreadCount(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, UnreadCountResponse{Message: "Unread count retrieved successfully", UnreadCount: n})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	n, err := h.Service.MarkRead(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NotificationResponse{Message: "Notification marked as read", Notification: n})
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	n, err := h.Service.MarkAllRead(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CountResponse{Message: "All notifications marked as read", Count: n})
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.Delete(r.Context(), actor, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Notification deleted successfully"})
}

func (h *Handler) ClearRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	n, err := h.Service.ClearRead(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CountResponse{Message: "Read notifications cleared", Count: n})
}
