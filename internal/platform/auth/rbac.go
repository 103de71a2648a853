package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/medora/medora/internal/platform/apierr"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role carries any capability beyond owning
// records.
func (r Role) Privileged() bool {
	return r == RoleDoctor || r == RoleAdmin
}

// Capability is a named permission checked independently of the role enum.
type Capability string

const (
	ManageUsers           Capability = "manage_users"
	ManageClinicalRecords Capability = "manage_clinical_records"
)

var capabilityRoles = map[Capability][]Role{
	ManageUsers:           {RoleAdmin},
	ManageClinicalRecords: {RoleAdmin, RoleDoctor},
}

var capabilityDenied = map[Capability]string{
	ManageUsers:           "Admin access required",
	ManageClinicalRecords: "Doctor or admin access required",
}

func (r Role) Can(c Capability) bool {
	for _, allowed := range capabilityRoles[c] {
		if r == allowed {
			return true
		}
	}
	return false
}

// Forbidden returns the error reported when an actor lacks c.
func Forbidden(c Capability) *apierr.Error {
	if msg, ok := capabilityDenied[c]; ok {
		return apierr.Forbidden(msg)
	}
	return apierr.Forbidden("Access denied")
}

// RequireCapability rejects requests whose actor lacks c. It must run after
// JWTMiddleware.
func RequireCapability(c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor := ActorFromContext(ctx.Request().Context())
			if actor == nil {
				return apierr.Unauthorized("Missing token")
			}
			if !actor.Can(c) {
				return Forbidden(c)
			}
			return next(ctx)
		}
	}
}
