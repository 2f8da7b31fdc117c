// Package identity carries the authenticated user forwarded by the edge.
package identity

import (
	"context"
	"net/http"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"

	RoleAdmin = "admin"
)

// Actor is the authenticated user a request acts for. Authentication happens
// at the edge, which forwards the identity as headers.
type Actor struct {
	ID    string
	Email string
	Role  string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// FromRequest reads the forwarded identity headers. The returned actor has an
// empty ID when the request is anonymous.
func FromRequest(r *http.Request) Actor {
	return Actor{
		ID:    r.Header.Get(HeaderUserID),
		Email: r.Header.Get(HeaderUserEmail),
		Role:  r.Header.Get(HeaderUserRole),
	}
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
