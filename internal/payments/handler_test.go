package payments

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

func newApp(svc *Service, walletID string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.Discard())})
	app.Post("/send", func(c *fiber.Ctx) error {
		if walletID != "" {
			c.Locals("wallet_id", walletID)
		}
		return c.Next()
	}, NewHandler(svc).Send)
	return app
}

func post(t *testing.T, app *fiber.App, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestSendHandler(t *testing.T) {
	_, svc, _ := newFixture(t)
	app := newApp(svc, "")

	resp, out := post(t, app, `{"fromWalletId":"A","toWalletId":"B","amount":40}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 60.0, out["senderNewBalance"])
	assert.Equal(t, 40.0, out["receiverNewBalance"])
	assert.Equal(t, "completed", out["status"])
	assert.NotEmpty(t, out["transactionId"])

	resp, out = post(t, app, `{"fromWalletId":"A","toWalletId":"B","amount":"1000.00"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errBody := out["error"].(map[string]any)
	assert.Equal(t, "InsufficientBalance", errBody["kind"])
	assert.Equal(t, 60.0, errBody["fields"].(map[string]any)["available"])

	resp, out = post(t, app, `{"fromWalletId":"A","toWalletId":"B","amount":"lots"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidAmount", out["error"].(map[string]any)["kind"])

	resp, out = post(t, app, `{"fromWalletId":"A","toWalletId":"nope","amount":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "WalletNotFound", out["error"].(map[string]any)["kind"])
}

func TestSendHandlerRejectsForeignWallet(t *testing.T) {
	_, svc, _ := newFixture(t)
	app := newApp(svc, "B")

	resp, out := post(t, app, `{"fromWalletId":"A","toWalletId":"B","amount":1}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden", out["error"].(map[string]any)["kind"])
}
