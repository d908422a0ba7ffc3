// middleware/admin_auth.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"royale-indexer/logger"

	"github.com/gofiber/fiber/v2"
)

// AdminAuthMiddleware validates the Bearer token of operator requests.
// An empty expected token rejects every request, so admin routes stay closed unless configured.
func AdminAuthMiddleware(expectedToken string) fiber.Handler {
	log := logger.Component("admin_auth")
	if expectedToken == "" {
		log.Warn("[ADMIN_AUTH] ADMIN_TOKEN is not set, admin routes are disabled")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.WithField("path", c.Path()).Warn("[ADMIN_AUTH] missing Authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin token missing",
			})
		}

		// Parse "Bearer <token>", accepting a raw token as well
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.WithField("path", c.Path()).Warn("[ADMIN_AUTH] invalid token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid admin token",
			})
		}
		return c.Next()
	}
}
