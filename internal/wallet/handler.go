package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/middleware"
	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	WalletID string `json:"walletId"`
	Currency string `json:"currency"`
}

// Create provisions a wallet on behalf of the provisioning collaborator.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{WalletID: req.WalletID, Currency: req.Currency})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(w)
}

type balanceResponse struct {
	WalletID string       `json:"walletId"`
	Balance  money.Amount `json:"balance"`
	Currency string       `json:"currency"`
}

// Balance returns the wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{
		WalletID: balance.WalletID,
		Balance:  balance.Amount,
		Currency: balance.Currency,
	})
}

// Mine returns the authenticated caller's balance split into available and
// pending funds.
func (h *Handler) Mine(c *fiber.Ctx) error {
	walletID, _ := c.Locals(middleware.LocalWalletID).(string)
	summary, err := h.service.Summary(c.UserContext(), walletID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"balance": summary})
}

// Received lists incoming transactions.
func (h *Handler) Received(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	txs, err := h.service.Received(c.UserContext(), walletID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(struct {
		WalletID string               `json:"walletId"`
		Received []ledger.Transaction `json:"received"`
	}{walletID, txs})
}

// History lists every transaction touching the wallet.
func (h *Handler) History(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	txs, err := h.service.History(c.UserContext(), walletID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(struct {
		WalletID string               `json:"walletId"`
		History  []ledger.Transaction `json:"history"`
	}{walletID, txs})
}
