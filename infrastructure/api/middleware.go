package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"styx-chat/auth"
	"styx-chat/domain/chat"
)

// identityKey is where the auth middleware parks the resolved identity in
// the request locals.
const identityKey = "identity"

// AuthMiddleware resolves the Bearer token into a chat.Identity or rejects
// the request with 401.
func AuthMiddleware(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Bearer token required",
			})
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "Invalid or expired token",
			})
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

func identityFrom(c *fiber.Ctx) (chat.Identity, bool) {
	identity, ok := c.Locals(identityKey).(chat.Identity)
	return identity, ok
}
