package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticketflow/internal/domain"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// RequireRole rejects callers whose role is not in allowed. Route-level
// checks are a coarse filter; the workflow service enforces the
// authoritative rules on every operation.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return apperrors.NewForbidden()
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return RequireRole()
}
