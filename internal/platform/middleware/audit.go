package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var auditedPrefixes = []string{"/api/patients", "/api/appointments"}

// Audit emits a record_access event for every request that touches patient
// or appointment records, after the handler has run. It reads the actor set
// by the JWT middleware from the echo context.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource := auditedResource(req.URL.Path)
			if resource == "" {
				return next(c)
			}

			err := next(c)

			rid, _ := c.Get("request_id").(string)
			actorID, _ := c.Get("actor_id").(string)
			role, _ := c.Get("actor_role").(string)

			logger.Info().
				Str("type", "record_access").
				Str("request_id", rid).
				Str("actor_id", actorID).
				Str("actor_role", role).
				Str("resource", resource).
				Str("record_id", recordID(req.URL.Path, resource)).
				Str("action", methodToAction(req.Method)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Int("status", responseStatus(c, err)).
				Msg("record_access")

			return err
		}
	}
}

func auditedResource(path string) string {
	for _, p := range auditedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return strings.TrimPrefix(p, "/api/")
		}
	}
	return ""
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// recordID returns the UUID following the resource segment, if any.
func recordID(path, resource string) string {
	rest := strings.TrimPrefix(path, "/api/"+resource+"/")
	if rest == path {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	if _, err := uuid.Parse(seg); err != nil {
		return ""
	}
	return seg
}
