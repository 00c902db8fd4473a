package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and resolves the calling actor.
type AuthMiddleware struct {
	tokens    *TokenManager
	directory repository.UserDirectory
}

// NewAuthMiddleware constructs middleware. With a non-nil directory the
// account must exist and be active, and its stored role wins over the
// token's.
func NewAuthMiddleware(tokens *TokenManager, directory repository.UserDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, directory: directory}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	actor := claims.Actor()

	if m.directory != nil {
		user, err := m.directory.GetByID(c.UserContext(), actor.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewUnauthorized("account not found")
			}
			return apperrors.MapError(err)
		}
		if !user.Active {
			return apperrors.NewUnauthorized("account is inactive")
		}
		actor.Role = user.Role
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}
