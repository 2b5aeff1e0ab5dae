package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
)

// Handler exposes HTTP endpoints for wallet funding.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit credits a wallet from a settled on-ramp order.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}

	result, err := h.service.Deposit(c.UserContext(), DepositInput{
		WalletID:  req.WalletID,
		Amount:    req.Amount.String(),
		Provider:  req.Provider,
		Reference: req.Reference,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return c.Status(http.StatusOK).JSON(toResponse(result, true))
		}
		return err
	}

	return c.Status(http.StatusCreated).JSON(toResponse(result, false))
}

func toResponse(result DepositResult, duplicate bool) DepositResponse {
	return DepositResponse{
		TransactionID: result.TransactionID,
		WalletID:      result.WalletID,
		Amount:        result.Amount,
		Reference:     result.Reference,
		Status:        result.Status,
		WalletBalance: result.WalletBalance,
		Duplicate:     duplicate,
	}
}
