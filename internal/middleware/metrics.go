package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/apierror"
	"github.com/lumen-wallet/lumen_wallet/internal/metrics"
)

// Metrics records request counts and latency per route pattern.
func Metrics(m *metrics.HTTP) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status, _ = apierror.Render(err)
		}
		m.Observe(c.Route().Path, c.Method(), status, start)
		return err
	}
}
