package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/account"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/transport"
	"github.com/frahmantamala/survey-management/pkg/logger"
)

type ServiceAPI interface {
	Login(ctx context.Context, dto LoginDTO) (*Session, error)
	Logout(ctx context.Context, actor identity.Actor)
	Authenticate(ctx context.Context, token string) (*account.Account, error)
	Status(ctx context.Context, actor identity.Actor) (*account.Account, error)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Cookie  CookieConfig
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, cookie CookieConfig) *Handler {
	if cookie.Name == "" {
		cookie.Name = "survey_token"
	}
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
		Cookie:      cookie,
	}
}

type LoginResponse struct {
	Message   string                  `json:"message"`
	User      account.AccountResponse `json:"user"`
	ExpiresAt time.Time               `json:"expires_at"`
}

type StatusResponse struct {
	Message       string                  `json:"message"`
	Authenticated bool                    `json:"authenticated"`
	User          account.AccountResponse `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	session, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.Token, session.ExpiresAt))
	h.WriteJSON(w, http.StatusOK, LoginResponse{
		Message:   "Login successful",
		User:      session.Account.ToResponse(),
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout clears the cookie whether or not the session was still valid.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if actor, ok := internal.ActorFromContext(r.Context()); ok {
		h.Service.Logout(r.Context(), actor)
	}

	http.SetCookie(w, h.expiredCookie())
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	acc, err := h.Service.Status(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, StatusResponse{
		Message:       "Authenticated",
		Authenticated: true,
		User:          acc.ToResponse(),
	})
}

// AuthMiddleware rejects requests without a valid session and puts the
// reloaded actor into the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, err := h.Service.Authenticate(r.Context(), h.token(r))
		if err != nil {
			if _, isApp := internal.IsAppError(err); isApp {
				http.SetCookie(w, h.expiredCookie())
			}
			h.HandleServiceError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), acc.Actor())))
	})
}

// OptionalAuth attaches the actor when the session is valid and otherwise passes through.
func (h *Handler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.token(r)
		if token != "" {
			if acc, err := h.Service.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(withActor(r.Context(), acc.Actor()))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func withActor(ctx context.Context, actor identity.Actor) context.Context {
	ctx = internal.ContextWithActor(ctx, actor)
	return logger.With(ctx, "user_id", actor.ID, "role", string(actor.Role))
}

// token prefers the session cookie and falls back to a bearer header for API clients.
func (h *Handler) token(r *http.Request) string {
	if c, err := r.Cookie(h.Cookie.Name); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	return h.ExtractTokenFromHeader(r)
}

func (h *Handler) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
