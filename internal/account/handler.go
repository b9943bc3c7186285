package account

import (
	"context"
	"net/http"

	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor identity.Actor, dto CreateAccountDTO) (*Account, error)
	Get(ctx context.Context, actor identity.Actor, id int64) (*Account, error)
	List(ctx context.Context, actor identity.Actor, filters ListFilters, page Page) ([]*Account, int64, error)
	Subordinates(ctx context.Context, actor identity.Actor) ([]*Account, error)
	Update(ctx context.Context, actor identity.Actor, id int64, dto UpdateAccountDTO) (*Account, error)
	ChangePassword(ctx context.Context, actor identity.Actor, dto ChangePasswordDTO) error
	ResetPassword(ctx context.Context, actor identity.Actor, id int64, dto ResetPasswordDTO) error
	Delete(ctx context.Context, actor identity.Actor, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	var dto CreateAccountDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	acc, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, AccountEnvelope{
		Message: "User created successfully",
		User:    acc.ToResponse(),
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filters := ListFilters{
		Role:     q.Get("role"),
		District: q.Get("district"),
		Division: q.Get("division"),
		IsActive: h.BoolQuery(r, "is_active"),
		Search:   q.Get("search"),
	}
	limit, offset := h.Pagination(r)

	accounts, total, err := h.Service.List(r.Context(), actor, filters, Page{Limit: limit, Offset: offset})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AccountsResponse{
		Message: "Users retrieved successfully",
		Users:   toResponses(accounts),
		Total:   total,
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	acc, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AccountEnvelope{Message: "User retrieved successfully", User: acc.ToResponse()})
}

func (h *Handler) GetSubordinates(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	accounts, err := h.Service.Subordinates(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AccountsResponse{
		Message: "Subordinates retrieved successfully",
		Users:   toResponses(accounts),
		Total:   int64(len(accounts)),
	})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto UpdateAccountDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	acc, err := h.Service.Update(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AccountEnvelope{Message: "User updated successfully", User: acc.ToResponse()})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), actor, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto ResetPasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), actor, id, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successfully"})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
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

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
