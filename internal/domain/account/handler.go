package account

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the credential endpoints on public, the refresh
// endpoint on a group authenticated by refresh tokens, and everything else on
// api, which is authenticated by access tokens.
func (h *Handler) RegisterRoutes(public, refresh, api *echo.Group) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)

	refresh.POST("/refresh", h.Refresh)

	api.POST("/logout", h.Logout)
	api.GET("/profile", h.GetProfile)
	api.PUT("/profile", h.UpdateProfile)

	admin := auth.RequireCapability(auth.ManageUsers)
	api.GET("/users", h.ListUsers, admin)
	api.PUT("/users/:id", h.UpdateUser, admin)
	api.DELETE("/users/:id", h.DeleteUser, admin)
	api.GET("/admin/diagnostics", h.Diagnostics, admin)
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return apierr.Validation("Invalid JSON body")
	}
	return nil
}

func actorOf(c echo.Context) (*auth.Actor, error) {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor == nil {
		return nil, apierr.Unauthorized("Missing token")
	}
	return actor, nil
}

func userID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apierr.NotFound("User not found")
	}
	return id, nil
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user, pair, err := h.svc.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":       "User registered successfully",
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	user, pair, err := h.svc.Login(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":       "Login successful",
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	token, err := h.svc.Refresh(actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Logout(c echo.Context) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return apierr.Unauthorized("Missing token")
	}
	var req logoutRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.svc.Logout(c.Request().Context(), claims, req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) GetProfile(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	user, err := h.svc.Profile(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": user})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var patch ProfilePatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	user, err := h.svc.UpdateProfile(c.Request().Context(), actor, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), p.Limit(), p.Offset())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.Envelope("users", users, p, total))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := userID(c)
	if err != nil {
		return err
	}
	var patch UserPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	user, err := h.svc.UpdateUser(c.Request().Context(), actor, id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    user,
	})
}

func (h *Handler) DeleteUser(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	id, err := userID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeactivateUser(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deactivated successfully"})
}

func (h *Handler) Diagnostics(c echo.Context) error {
	report, err := h.svc.Diagnostics(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
