package accounts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-wallet/lumen_wallet/internal/apierror"
	"github.com/lumen-wallet/lumen_wallet/internal/logging"
)

func TestAccountRoutes(t *testing.T) {
	h := NewHandler(newService())
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("wallet_id", "w1")
		return c.Next()
	})
	app.Get("/accounts", h.List)
	app.Post("/accounts", h.Add)
	app.Delete("/accounts/:accountId", h.Remove)
	app.Post("/internal/accounts/:accountId/verified", h.Verified)

	req := httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(`{"type":"bank_account","name":"Checking"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/accounts", strings.NewReader(
		`{"type":"ewallet","name":"John","accountNumber":"john@example.com","ewalletType":"paypal"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Account Account `json:"account"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.False(t, created.Account.IsVerified)
	assert.Equal(t, "ewallet", created.Account.Type)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/internal/accounts/"+created.Account.ID+"/verified", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/accounts", nil))
	require.NoError(t, err)
	var listed struct {
		Accounts []Account `json:"accounts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed.Accounts, 1)
	assert.True(t, listed.Accounts[0].IsVerified)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/accounts/acc_unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
