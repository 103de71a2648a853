package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medora/medora/internal/platform/apierr"
)

// ActorResolver loads the current state of a user. It returns an apierr
// NotFound error when the user does not exist.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id uuid.UUID) (*Actor, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
// Anything else counts as a missing token.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// JWTMiddleware verifies a token of the given kind, resolves the actor from
// storage and stores both on the request context. Deactivated accounts are
// rejected even while their tokens are still valid.
func JWTMiddleware(tokens *TokenService, users ActorResolver, kind TokenKind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			raw := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))

			claims, err := tokens.Verify(ctx, raw, kind)
			if err != nil {
				if errors.Is(err, ErrTokenMissing) || errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) {
					return TokenError(err)
				}
				return apierr.Internal(err)
			}

			uid, _ := claims.UserID()
			actor, err := users.ResolveActor(ctx, uid)
			if err != nil {
				if apierr.Is(err, apierr.KindNotFound) {
					return apierr.Unauthorized("Invalid token")
				}
				return err
			}
			if !actor.Active {
				return apierr.Unauthorized("Account is deactivated")
			}

			ctx = WithActor(ctx, actor)
			ctx = WithClaims(ctx, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("actor_id", actor.ID.String())
			c.Set("actor_role", string(actor.Role))

			return next(c)
		}
	}
}
