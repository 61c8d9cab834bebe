package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// JWTMiddleware validates bearer tokens issued for deviceID and stores the
// device in locals. An empty secret disables the check for loopback use.
func JWTMiddleware(secret, deviceID string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error {
			c.Locals("device_id", deviceID)
			return c.Next()
		}
	}
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		if deviceID != "" && claims.DeviceID != deviceID {
			return fiber.NewError(fiber.StatusForbidden, "token issued for another device")
		}

		c.Locals("device_id", claims.DeviceID)
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
