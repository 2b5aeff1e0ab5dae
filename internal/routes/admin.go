package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/admin"
)

// RegisterAdminRoutes wires operator views.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler) {
	r.Get("/transactions", h.Transactions)
	r.Get("/users", h.Users)
}

// RegisterMerchantRoutes wires the merchant dashboard.
func RegisterMerchantRoutes(r fiber.Router, h *admin.Handler, identity fiber.Handler) {
	r.Get("/merchant/dashboard", identity, h.MerchantDashboard)
}
