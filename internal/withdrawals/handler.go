package withdrawals

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

// Handler exposes withdrawal endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a withdrawal handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type withdrawRequest struct {
	Amount               money.Input `json:"amount"`
	DestinationAccountID string      `json:"destinationAccountId"`
	Note                 string      `json:"note"`
}

type confirmRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

func walletID(c *fiber.Ctx) string {
	id, _ := c.Locals("wallet_id").(string)
	return id
}

// Withdraw starts a payout from the caller's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	res, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		WalletID:             walletID(c),
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount.String(),
		Note:                 req.Note,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

// List pages through the caller's withdrawals.
func (h *Handler) List(c *fiber.Ctx) error {
	page, err := h.service.List(c.UserContext(), walletID(c), c.QueryInt("page", 1), c.QueryInt("limit", defaultPageSize))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Get returns one withdrawal with its status history.
func (h *Handler) Get(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.UserContext(), walletID(c), c.Params("transactionId"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// Limits reports the caller's withdrawal limits and usage.
func (h *Handler) Limits(c *fiber.Ctx) error {
	limits, err := h.service.Limits(c.UserContext(), walletID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"limits": limits})
}

// Confirm is the payout collaborator's settlement callback.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	rec, err := h.service.Confirm(c.UserContext(), c.Params("transactionId"), req.Status, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}
