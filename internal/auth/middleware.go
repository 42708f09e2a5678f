package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/domain"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

const actorKey = "auth_actor"

// Resolver turns a bearer credential into an actor.
type Resolver interface {
	Resolve(ctx context.Context, rawToken string) (domain.Actor, error)
}

// IdentityMiddleware validates bearer tokens and stores the resolved actor.
type IdentityMiddleware struct {
	resolver Resolver
}

// NewIdentityMiddleware constructs middleware.
func NewIdentityMiddleware(resolver Resolver) *IdentityMiddleware {
	return &IdentityMiddleware{resolver: resolver}
}

// Handle enforces authentication for protected routes.
func (m *IdentityMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	actor, err := m.resolver.Resolve(c.UserContext(), parts[1])
	if err != nil {
		return err
	}

	c.Locals(actorKey, actor)
	return c.Next()
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}
