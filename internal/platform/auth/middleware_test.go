package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medora/medora/internal/platform/apierr"
)

type stubResolver map[uuid.UUID]*Actor

func (s stubResolver) ResolveActor(_ context.Context, id uuid.UUID) (*Actor, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, apierr.NotFound("User not found")
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, header string) (*Actor, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *Actor
	err := mw(func(c echo.Context) error {
		seen = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})(c)
	return seen, err
}

func assertUnauthorized(t *testing.T, err error, msg string) {
	t.Helper()
	var appErr *apierr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apierr.KindUnauthorized, appErr.Kind)
	assert.Equal(t, msg, appErr.Message)
}

func TestJWTMiddleware_ResolvesActor(t *testing.T) {
	tokens := newTestTokens(nil)
	actor := &Actor{ID: uuid.New(), Username: "alice", Role: RoleUser, Active: true}
	raw, err := tokens.Issue(actor.ID, AccessToken)
	require.NoError(t, err)

	seen, err := runMiddleware(t, JWTMiddleware(tokens, stubResolver{actor.ID: actor}, AccessToken), "Bearer "+raw)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, actor.ID, seen.ID)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(newTestTokens(nil), stubResolver{}, AccessToken), "")
	assertUnauthorized(t, err, "Missing token")
}

func TestJWTMiddleware_WrongScheme(t *testing.T) {
	for _, h := range []string{"Token abc", "Bearer", "Basic dXNlcjpwYXNz"} {
		_, err := runMiddleware(t, JWTMiddleware(newTestTokens(nil), stubResolver{}, AccessToken), h)
		assertUnauthorized(t, err, "Missing token")
	}
}

func TestJWTMiddleware_Garbage(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(newTestTokens(nil), stubResolver{}, AccessToken), "Bearer not.a.jwt")
	assertUnauthorized(t, err, "Invalid token")
}

func TestJWTMiddleware_RefreshTokenOnAccessRoute(t *testing.T) {
	tokens := newTestTokens(nil)
	actor := &Actor{ID: uuid.New(), Role: RoleUser, Active: true}
	raw, err := tokens.Issue(actor.ID, RefreshToken)
	require.NoError(t, err)

	_, err = runMiddleware(t, JWTMiddleware(tokens, stubResolver{actor.ID: actor}, AccessToken), "Bearer "+raw)
	assertUnauthorized(t, err, "Invalid token")
}

func TestJWTMiddleware_Deactivated(t *testing.T) {
	tokens := newTestTokens(nil)
	actor := &Actor{ID: uuid.New(), Role: RoleDoctor, Active: false}
	raw, err := tokens.Issue(actor.ID, AccessToken)
	require.NoError(t, err)

	_, err = runMiddleware(t, JWTMiddleware(tokens, stubResolver{actor.ID: actor}, AccessToken), "Bearer "+raw)
	assertUnauthorized(t, err, "Account is deactivated")
}

func TestJWTMiddleware_UnknownSubject(t *testing.T) {
	tokens := newTestTokens(nil)
	raw, err := tokens.Issue(uuid.New(), AccessToken)
	require.NoError(t, err)

	_, err = runMiddleware(t, JWTMiddleware(tokens, stubResolver{}, AccessToken), "Bearer "+raw)
	assertUnauthorized(t, err, "Invalid token")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Bearer"))
	assert.Equal(t, "", BearerToken("Basic abc"))
}
