package utils

import "github.com/gofiber/fiber/v2"

// JSON writes payload as the whole response body; responses carry no
// success/data envelope.
func JSON(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(payload)
}

func Message(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// ErrorWithDetails adds field-level messages keyed by request field name.
func ErrorWithDetails(c *fiber.Ctx, status int, message string, details map[string][]string) error {
	body := fiber.Map{"error": message}
	if len(details) > 0 {
		body["details"] = details
	}
	return c.Status(status).JSON(body)
}
