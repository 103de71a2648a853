package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	actorKey  contextKey = "actor"
	claimsKey contextKey = "token_claims"
)

// Actor is the identity resolved for the current request.
type Actor struct {
	ID       uuid.UUID
	Username string
	Role     Role
	Active   bool
}

// Can reports whether the actor holds the capability.
func (a *Actor) Can(c Capability) bool {
	return a != nil && a.Role.Can(c)
}

// CanAccess reports whether the actor may act on a record owned by ownerID:
// owners always can, clinical staff can for any owner.
func (a *Actor) CanAccess(ownerID uuid.UUID) bool {
	if a == nil {
		return false
	}
	return a.ID == ownerID || a.Can(ManageClinicalRecords)
}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the actor set by JWTMiddleware, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorKey).(*Actor)
	return a
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the verified token claims for the request, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}
