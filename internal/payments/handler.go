package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromWalletID string      `json:"fromWalletId"`
	ToWalletID   string      `json:"toWalletId"`
	Amount       money.Input `json:"amount"`
}

// Send processes a wallet-to-wallet transfer.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	walletID, _ := c.Locals("wallet_id").(string)

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromWalletID:      req.FromWalletID,
		ToWalletID:        req.ToWalletID,
		Amount:            req.Amount.String(),
		RequestorWalletID: walletID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}
