package middleware

import (
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// Protected guards the admin surface: requests need a token issued by
// the admin login endpoint.
func Protected(jwtSecret []byte) func(*fiber.Ctx) error {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: jwtSecret},
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, _ error) error {
	c.Status(fiber.StatusUnauthorized)
	return c.JSON(fiber.Map{"success": false, "error": "Admin authorization required"})
}
