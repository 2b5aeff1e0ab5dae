package admin

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the read-only views.
type Handler struct {
	service *Service
}

// NewHandler constructs an admin handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Transactions lists the newest ledger entries.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs, err := h.service.RecentTransactions(c.UserContext(), c.QueryInt("limit", defaultRecent))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transactions": txs})
}

// Users lists wallet holders known to the ledger.
func (h *Handler) Users(c *fiber.Ctx) error {
	wallets, err := h.service.Wallets(c.UserContext(), c.QueryInt("limit", defaultRecent))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": wallets})
}

// MerchantDashboard summarizes the caller's incoming payments.
func (h *Handler) MerchantDashboard(c *fiber.Ctx) error {
	walletID, _ := c.Locals("wallet_id").(string)
	summary, err := h.service.MerchantSummary(c.UserContext(), walletID)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}
