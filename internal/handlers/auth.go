package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"social-backend/internal/services"
)

const tokenCookie = "token"

// bearerToken looks for the session token in the `token` cookie, then the
// Authorization header, then the `access_token` query param (browsers can't
// set headers on a websocket handshake).
func bearerToken(c *fiber.Ctx) string {
	if token := c.Cookies(tokenCookie); token != "" {
		return token
	}
	if authHeader := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return c.Query("access_token")
}

// AuthMiddleware verifies the JWT and stores the caller id in Locals("user_id").
func AuthMiddleware(tokens *services.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized request")
		}

		userID, err := tokens.Validate(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
