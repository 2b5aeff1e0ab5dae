package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/logging"
)

func TestAuditLogsRejectionsWithKind(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Audit(logging.NewWithWriter(&buf, "info", "json")))
	app.Post("/send", func(c *fiber.Ctx) error {
		c.Locals(LocalWalletID, "w1")
		return ledger.Errorf(ledger.KindInsufficientBalance, "insufficient balance")
	})

	req := httptest.NewRequest(fiber.MethodPost, "/send", nil)
	req.Header.Set(HeaderRequestID, "trace-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(HeaderRequestID); got != "trace-1" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["level"] != "WARN" || line["kind"] != "InsufficientBalance" {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["wallet_id"] != "w1" || line["request_id"] != "trace-1" {
		t.Fatalf("expected wallet and request ids in %v", line)
	}
}

func TestRequestIDReplacesUnusableIDs(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for _, supplied := range []string{"", "has space", strings.Repeat("x", maxRequestID+1)} {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		if supplied != "" {
			req.Header.Set(HeaderRequestID, supplied)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if got := resp.Header.Get(HeaderRequestID); !strings.HasPrefix(got, "req_") {
			t.Fatalf("supplied %q: expected minted id, got %q", supplied, got)
		}
	}
}
