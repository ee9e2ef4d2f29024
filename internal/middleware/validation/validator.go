package validation

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	MaxBodyBytes        int
	AllowedContentTypes []string
}

// Middleware rejects malformed requests before they reach a handler:
// wrong content type, oversized body, or a body that is not valid JSON.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 4 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" {
			allowed := false
			for _, allowedType := range cfg.AllowedContentTypes {
				if strings.Contains(contentType, allowedType) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		body := c.Body()
		if len(body) > cfg.MaxBodyBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body exceeds maximum size",
			})
		}

		if len(body) > 0 && !json.Valid(body) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		return c.Next()
	}
}
