package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-wallet/lumen_wallet/internal/apierror"
	"github.com/lumen-wallet/lumen_wallet/internal/config"
	"github.com/lumen-wallet/lumen_wallet/internal/logging"
)

type client struct {
	t   *testing.T
	app *fiber.App
}

func newClient(t *testing.T) client {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppEnv:          "test",
		InternalToken:   "internal",
		IdempotencyTTL:  time.Minute,
		TransferRetries: 2,
		RateLimit:       100,
		Limits:          config.DefaultLimits(),
	}
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler(logging.Discard())})
	require.NoError(t, Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logging.Discard()}))
	return client{t: t, app: app}
}

func (c client) do(method, path, body string, headers map[string]string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.app.Test(req, 5000)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

var internal = map[string]string{"X-Internal-Token": "internal"}

func as(wallet string) map[string]string {
	return map[string]string{"X-User-ID": "user-" + wallet, "X-Wallet-ID": wallet}
}

func TestTransferFlow(t *testing.T) {
	c := newClient(t)

	status, _ := c.do(http.MethodPost, "/internal/wallets", `{"walletId":"A"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	for _, id := range []string{"A", "B"} {
		status, _ = c.do(http.MethodPost, "/internal/wallets", `{"walletId":"`+id+`"}`, internal)
		require.Equal(t, http.StatusCreated, status)
	}
	status, _ = c.do(http.MethodPost, "/internal/deposits", `{"walletId":"A","amount":"100.00","provider":"moonpay","reference":"o1"}`, internal)
	require.Equal(t, http.StatusCreated, status)

	status, _ = c.do(http.MethodPost, "/send", `{"fromWalletId":"A","toWalletId":"B","amount":40}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := c.do(http.MethodPost, "/send", `{"fromWalletId":"A","toWalletId":"B","amount":"40.00"}`, as("A"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 60.0, body["senderNewBalance"])

	status, body = c.do(http.MethodPost, "/send", `{"fromWalletId":"A","toWalletId":"B","amount":"1000.00"}`, as("A"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InsufficientBalance", body["error"].(map[string]any)["kind"])

	status, body = c.do(http.MethodGet, "/balance/B", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 40.0, body["balance"])

	status, _ = c.do(http.MethodGet, "/balance/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = c.do(http.MethodGet, "/history/A", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["history"], 2)

	status, body = c.do(http.MethodGet, "/received/B", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["received"], 1)
}

func TestSendIdempotencyKeyReplays(t *testing.T) {
	c := newClient(t)
	for _, id := range []string{"A", "B"} {
		c.do(http.MethodPost, "/internal/wallets", `{"walletId":"`+id+`"}`, internal)
	}
	c.do(http.MethodPost, "/internal/deposits", `{"walletId":"A","amount":"10","provider":"p","reference":"r"}`, internal)

	headers := as("A")
	headers["Idempotency-Key"] = "k-1"
	_, first := c.do(http.MethodPost, "/send", `{"fromWalletId":"A","toWalletId":"B","amount":"5"}`, headers)
	_, second := c.do(http.MethodPost, "/send", `{"fromWalletId":"A","toWalletId":"B","amount":"5"}`, headers)
	assert.Equal(t, first["transactionId"], second["transactionId"])

	_, body := c.do(http.MethodGet, "/balance/A", "", nil)
	assert.Equal(t, 5.0, body["balance"])
}

func TestWithdrawalFlow(t *testing.T) {
	c := newClient(t)
	c.do(http.MethodPost, "/internal/wallets", `{"walletId":"A"}`, internal)
	c.do(http.MethodPost, "/internal/deposits", `{"walletId":"A","amount":"500","provider":"p","reference":"r"}`, internal)

	status, body := c.do(http.MethodPost, "/accounts",
		`{"type":"bank_account","name":"Checking","accountNumber":"123","routingNumber":"021000021"}`, as("A"))
	require.Equal(t, http.StatusCreated, status)
	accountID := body["account"].(map[string]any)["id"].(string)

	status, body = c.do(http.MethodPost, "/withdraw", `{"amount":"100","destinationAccountId":"`+accountID+`"}`, as("A"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidDestination", body["error"].(map[string]any)["kind"])

	status, _ = c.do(http.MethodPost, "/internal/accounts/"+accountID+"/verified", "", internal)
	require.Equal(t, http.StatusOK, status)

	status, body = c.do(http.MethodPost, "/withdraw", `{"amount":"100","destinationAccountId":"`+accountID+`"}`, as("A"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, 0.25, body["fee"])
	txID := body["transactionId"].(string)

	status, body = c.do(http.MethodGet, "/withdraw-limits", "", as("A"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 100.0, body["limits"].(map[string]any)["dailyUsed"])

	status, _ = c.do(http.MethodGet, "/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = c.do(http.MethodGet, "/balance", "", as("A"))
	require.Equal(t, http.StatusOK, status)
	summary := body["balance"].(map[string]any)
	assert.Equal(t, 400.0, summary["available"])
	assert.Equal(t, 100.0, summary["pending"])
	assert.Equal(t, 500.0, summary["total"])
	assert.Equal(t, "USD", summary["currency"])

	status, body = c.do(http.MethodPost, "/internal/withdrawals/"+txID+"/confirm", `{"status":"failed"}`, internal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "failed", body["status"])

	_, body = c.do(http.MethodGet, "/balance/A", "", nil)
	assert.Equal(t, 500.0, body["balance"])

	status, body = c.do(http.MethodGet, "/withdrawals/"+txID, "", as("A"))
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["statusHistory"], 3)

	status, body = c.do(http.MethodGet, "/admin/transactions", "", internal)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["transactions"], 2)

	status, body = c.do(http.MethodGet, "/admin/users", "", internal)
	require.Equal(t, http.StatusOK, status)
	users := body["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "A", users[0].(map[string]any)["id"])

	status, _ = c.do(http.MethodGet, "/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestOpsEndpoints(t *testing.T) {
	c := newClient(t)
	status, body := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "disabled", body["status"].(map[string]any)["postgres"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := c.app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestHealthReportsUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	RegisterHealthRoutes(app, Deps{Cache: cache})
	mr.Close()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
