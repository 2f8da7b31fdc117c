package orders

import (
	"net/http"

	"github.com/joao-fontenele/storefront/internal/identity"
)

const (
	HeaderUserID    = identity.HeaderUserID
	HeaderUserEmail = identity.HeaderUserEmail
	HeaderUserRole  = identity.HeaderUserRole

	RoleAdmin = identity.RoleAdmin
)

type Actor = identity.Actor

var (
	WithActor = identity.WithActor
	ActorFrom = identity.ActorFrom
)

// RequireActor rejects requests without a user id header and stores the
// actor on the request context.
func (h *Handler) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := identity.FromRequest(r)
		if actor.ID == "" {
			h.writeError(w, r, http.StatusUnauthorized, "missing user identity")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
