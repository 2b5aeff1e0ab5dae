package accounts

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes destination account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addRequest struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
	BankName      string `json:"bankName"`
	EWalletType   string `json:"ewalletType"`
}

func walletID(c *fiber.Ctx) string {
	id, _ := c.Locals("wallet_id").(string)
	return id
}

// List returns the caller's destination accounts.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.List(c.UserContext(), walletID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"accounts": accounts})
}

// Add registers a destination account.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "malformed request body")
	}
	account, err := h.service.Add(c.UserContext(), walletID(c), AddInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account": account,
		"message": "Destination account added successfully",
	})
}

// Remove deactivates a destination account.
func (h *Handler) Remove(c *fiber.Ctx) error {
	if err := h.service.Remove(c.UserContext(), walletID(c), c.Params("accountId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Destination account removed successfully"})
}

// Verify requests verification of a destination account.
func (h *Handler) Verify(c *fiber.Ctx) error {
	v, err := h.service.RequestVerification(c.UserContext(), walletID(c), c.Params("accountId"))
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// Verified is the verifier's callback marking an account verified.
func (h *Handler) Verified(c *fiber.Ctx) error {
	account, err := h.service.MarkVerified(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"account": account})
}
