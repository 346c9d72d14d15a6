package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/harborbank/harbor/internal/identity"
	"github.com/harborbank/harbor/internal/session"
	"github.com/harborbank/harbor/internal/web"
)

// SessionAuth resolves the bearer token against the session store and puts
// the owning user id into c.Locals("user_id").
func SessionAuth(sessions session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := sessions.Validate(c.UserContext(), token)
		if err != nil {
			return web.HTTPError(err)
		}

		c.Locals("user_id", userID)
		c.Locals("session_token", token)
		return c.Next()
	}
}

// RequireRoles gates a route group to the given roles. It must run after
// SessionAuth.
func RequireRoles(users identity.Repository, roles ...identity.Role) fiber.Handler {
	allowed := make(map[identity.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		uid, ok := c.Locals("user_id").(int64)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		user, err := users.FindByID(c.UserContext(), uid)
		if err != nil {
			return web.HTTPError(err)
		}
		if _, ok := allowed[user.Role]; !ok {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
