package middleware

import (
	"net/http"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/frahmantamala/survey-management/internal/transport"
)

// RequireRoles admits only authenticated actors holding one of roles. Scope
// checks stay in the services; this is the coarse role gate per route.
func RequireRoles(base *transport.BaseHandler, roles ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok {
				base.HandleServiceError(w, r, internal.ErrUnauthenticated)
				return
			}

			if !actor.HasRole(roles...) {
				base.Logger.Warn("access denied: role not permitted",
					"user_id", actor.ID,
					"role", actor.Role,
					"required_roles", identity.RoleStrings(roles))
				base.HandleServiceError(w, r,
					internal.NewForbiddenError("Your role may not perform this action", internal.ErrCodeInsufficientRole))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
