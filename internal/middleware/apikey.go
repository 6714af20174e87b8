package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const apiKeyHeader = "X-API-Key"

// APIKey authenticates internal callers with a pre-shared key sent either as
// X-API-Key or as an Authorization bearer token. An empty configured key
// rejects every request with 500.
func APIKey(key string) fiber.Handler {
	expected := []byte(key)
	return func(c *fiber.Ctx) error {
		if len(expected) == 0 {
			return fiber.NewError(http.StatusInternalServerError, "Server configuration error")
		}

		provided := c.Get(apiKeyHeader)
		if provided == "" {
			authz := c.Get(fiber.HeaderAuthorization)
			if len(authz) > len("Bearer ") && strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
				provided = strings.TrimSpace(authz[len("Bearer "):])
			}
		}
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
		}
		return c.Next()
	}
}
