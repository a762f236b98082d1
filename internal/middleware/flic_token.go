package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

// FlicTokenMiddleware authenticates the share_url intake path with the
// caller-supplied flic_token header. Errors use the endpoint's own
// {"status","message"} shape, which share clients depend on.
type FlicTokenMiddleware struct {
	token string
}

func NewFlicTokenMiddleware(token string) *FlicTokenMiddleware {
	return &FlicTokenMiddleware{token: token}
}

// Require rejects the request before any task is created when the token
// is missing or wrong.
func (m *FlicTokenMiddleware) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.token == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(model.ShareURLResponse{
				Status:  "error",
				Message: "Share intake is not configured.",
			})
		}

		supplied := c.Get("flic_token")
		if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(m.token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(model.ShareURLResponse{
				Status:  "error",
				Message: "Invalid or missing flic_token.",
			})
		}
		return c.Next()
	}
}
