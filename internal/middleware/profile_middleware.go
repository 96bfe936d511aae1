package middleware

import (
	"github.com/gofiber/fiber/v2"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/utils/jwt"
)

// RequireProfileType restricts a route to the given profile types.
func RequireProfileType(types ...model.ProfileType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := c.Locals("user").(*jwt.Claims)

		for _, t := range types {
			if claims.ProfileType == t {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "This endpoint is not available for your profile type",
		})
	}
}
