package apierror

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/logging"
)

func serve(t *testing.T, err error) (int, Body, http.Header) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: Handler(logging.Discard())})
	app.Get("/", func(c *fiber.Ctx) error { return err })

	resp, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, testErr)
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)
	var body Body
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body, resp.Header
}

func TestHandlerRendersLedgerKinds(t *testing.T) {
	status, body, _ := serve(t, ledger.InsufficientBalance(6000, 100000))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InsufficientBalance", body.Error.Kind)
	assert.Equal(t, 60.0, body.Error.Fields["available"])
	assert.Equal(t, 1000.0, body.Error.Fields["requested"])

	status, body, _ = serve(t, ledger.WalletNotFound("w-9"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "WalletNotFound", body.Error.Kind)
}

func TestHandlerHidesStorageDetails(t *testing.T) {
	status, body, _ := serve(t, ledger.Storage(errors.New("pq: relation wallets does not exist")))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", body.Error.Detail)

	status, body, _ = serve(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "StorageFailure", body.Error.Kind)
	assert.NotContains(t, body.Error.Detail, "boom")
}

func TestHandlerMarksConflictsRetryable(t *testing.T) {
	status, body, header := serve(t, ledger.Conflict(errors.New("deadlock detected")))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "ConcurrencyConflict", body.Error.Kind)
	assert.Equal(t, "1", header.Get("Retry-After"))
}

func TestHandlerClassifiesFiberErrors(t *testing.T) {
	status, body, _ := serve(t, fiber.NewError(http.StatusUnauthorized, "missing bearer token"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body.Error.Kind)
	assert.Equal(t, "missing bearer token", body.Error.Detail)
}
