package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/wallet"
)

// RegisterWalletRoutes wires the read-only wallet query endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, identity fiber.Handler) {
	r.Get("/balance", identity, h.Mine)
	r.Get("/balance/:walletId", h.Balance)
	r.Get("/received/:walletId", h.Received)
	r.Get("/history/:walletId", h.History)
}
