package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/accounts"
	"github.com/lumen-wallet/lumen_wallet/internal/withdrawals"
)

// RegisterWithdrawalRoutes wires payout endpoints.
func RegisterWithdrawalRoutes(r fiber.Router, h *withdrawals.Handler, identity, rateLimiter, idempotency fiber.Handler) {
	r.Post("/withdraw", identity, rateLimiter, idempotency, h.Withdraw)
	r.Get("/withdraw-limits", identity, h.Limits)
	r.Get("/withdrawals", identity, h.List)
	r.Get("/withdrawals/:transactionId", identity, h.Get)
}

// RegisterAccountRoutes wires destination account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler, identity fiber.Handler) {
	r.Get("/accounts", identity, h.List)
	r.Post("/accounts", identity, h.Add)
	r.Delete("/accounts/:accountId", identity, h.Remove)
	r.Post("/accounts/:accountId/verify", identity, h.Verify)
}
