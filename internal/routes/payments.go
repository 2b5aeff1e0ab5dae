package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/payments"
)

// RegisterPaymentRoutes wires payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, identity, rateLimiter, idempotency fiber.Handler) {
	r.Post("/send", identity, rateLimiter, idempotency, h.Send)
}
