package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/apierror"
)

// Audit emits one structured line per request carrying the caller's wallet.
// Rejected requests are logged at warn with the error kind the client saw;
// server faults are left to the error handler.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.Duration("duration", time.Since(start)),
		}
		if id, _ := c.Locals(HeaderRequestID).(string); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if id, _ := c.Locals(LocalWalletID).(string); id != "" {
			attrs = append(attrs, slog.String("wallet_id", id))
		}

		if err == nil {
			logger.Info("request completed", append(attrs, slog.Int("status", c.Response().StatusCode()))...)
			return nil
		}
		status, body := apierror.Render(err)
		if status < fiber.StatusInternalServerError {
			logger.Warn("request rejected", append(attrs,
				slog.Int("status", status),
				slog.String("kind", body.Error.Kind),
				slog.String("detail", body.Error.Detail),
			)...)
		}
		return err
	}
}
