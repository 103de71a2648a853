package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medora/medora/internal/config"
	"github.com/medora/medora/internal/domain/account"
	"github.com/medora/medora/internal/domain/dashboard"
	"github.com/medora/medora/internal/domain/patient"
	"github.com/medora/medora/internal/domain/scheduling"
	"github.com/medora/medora/internal/platform/apierr"
	"github.com/medora/medora/internal/platform/auth"
	"github.com/medora/medora/internal/platform/middleware"
)

const maxBodySize = "1M"

type services struct {
	tokens     *auth.TokenService
	account    *account.Service
	patient    *patient.Service
	scheduling *scheduling.Service
	dashboard  *dashboard.Service
}

// newRouter builds the HTTP surface. Credential endpoints are rate limited;
// everything else under /api requires an access token.
func newRouter(logger zerolog.Logger, cfg *config.Config, svc services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
	}))
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	public := e.Group("/api", middleware.RateLimit(rateLimitCfg))
	refresh := e.Group("/api",
		middleware.RateLimit(rateLimitCfg),
		auth.JWTMiddleware(svc.tokens, svc.account, auth.RefreshToken),
	)
	api := e.Group("/api", auth.JWTMiddleware(svc.tokens, svc.account, auth.AccessToken))

	account.NewHandler(svc.account).RegisterRoutes(public, refresh, api)
	patient.NewHandler(svc.patient).RegisterRoutes(api)
	scheduling.NewHandler(svc.scheduling).RegisterRoutes(api)
	dashboard.NewHandler(svc.dashboard).RegisterRoutes(api)

	// Groups install their own not-found routes behind their middleware;
	// unknown /api paths must 404 without a token.
	notFound := func(c echo.Context) error { return echo.ErrNotFound }
	e.RouteNotFound("/api", notFound)
	e.RouteNotFound("/api/*", notFound)

	return e
}
