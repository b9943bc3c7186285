package submission

import (
	"context"
	"net/http"

	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor identity.Actor, dto CreateSubmissionDTO) (*Submission, error)
	List(ctx context.Context, actor identity.Actor, filters Filters, page Page) ([]*Submission, int64, error)
	Get(ctx context.Context, actor identity.Actor, id int64) (*Submission, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	var dto CreateSubmissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	sub, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, SubmissionEnvelope{Message: "Submission created successfully", Submission: sub})
}

func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filters := Filters{
		District:    q.Get("district"),
		Division:    q.Get("division"),
		SubDivision: q.Get("sub_division"),
	}
	var err error
	if filters.From, err = h.TimeQuery(r, "from", false); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if filters.To, err = h.TimeQuery(r, "to", true); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	limit, offset := h.Pagination(r)

	subs, total, err := h.Service.List(r.Context(), actor, filters, Page{Limit: limit, Offset: offset})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SubmissionsResponse{
		Message:     "Submissions retrieved successfully",
		Submissions: subs,
		Total:       total,
	})
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	sub, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SubmissionEnvelope{Message: "Submission retrieved successfully", Submission: sub})
}
