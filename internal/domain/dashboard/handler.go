package dashboard

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.Overview)
	api.GET("/dashboard/quick-stats", h.QuickStats)
	api.GET("/dashboard/notifications", h.Notifications)
}

func actorOf(c echo.Context) (*auth.Actor, error) {
	actor := auth.ActorFromContext(c.Request().Context())
	if actor == nil {
		return nil, apierr.Unauthorized("Missing token")
	}
	return actor, nil
}

func (h *Handler) Overview(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Overview(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) QuickStats(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	qs, err := h.svc.QuickStats(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"quick_stats": qs})
}

func (h *Handler) Notifications(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Notifications(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": items})
}
