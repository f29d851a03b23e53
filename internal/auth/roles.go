package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goldvault/support-messaging/internal/domain"
	apperrors "github.com/goldvault/support-messaging/pkg/util"
)

// RequireAdmin ensures an active admin is authenticated.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeAdmin || principal.Admin == nil {
			return apperrors.NewForbidden("admin required")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures the caller presented a valid identity.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
