// Package apierror renders ledger errors as structured JSON responses.
package apierror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
)

// Body is the JSON envelope of every error response.
type Body struct {
	Error Detail `json:"error"`
}

// Detail carries the machine-readable kind, a human readable message and any
// structured fields attached by the ledger.
type Detail struct {
	Kind   string         `json:"kind"`
	Detail string         `json:"detail"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Status maps a ledger error kind onto an HTTP status.
func Status(kind ledger.ErrorKind) int {
	switch kind {
	case ledger.KindInvalidInput, ledger.KindInvalidAmount, ledger.KindInsufficientBalance,
		ledger.KindInvalidDestination, ledger.KindLimitExceeded:
		return http.StatusBadRequest
	case ledger.KindWalletNotFound, ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindForbidden:
		return http.StatusForbidden
	case ledger.KindDuplicateTransaction:
		return http.StatusConflict
	case ledger.KindConcurrencyConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Handler is a fiber.ErrorHandler. Ledger errors keep their kind; fiber errors
// are classified by status; anything else becomes an opaque StorageFailure so
// internal details never reach the client.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := Render(err)
		if status >= http.StatusInternalServerError && logger != nil {
			requestID, _ := c.Locals("X-Request-ID").(string)
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", requestID),
				slog.String("kind", body.Error.Kind),
				slog.Any("error", err),
			)
		}
		if status == http.StatusServiceUnavailable {
			c.Set(fiber.HeaderRetryAfter, "1")
		}
		return c.Status(status).JSON(body)
	}
}

// Render maps err onto the HTTP status and body the client receives.
func Render(err error) (int, Body) {
	var le *ledger.Error
	if errors.As(err, &le) {
		detail := le.Detail
		if le.Kind == ledger.KindStorageFailure {
			detail = "internal error"
		}
		if detail == "" {
			detail = string(le.Kind)
		}
		return Status(le.Kind), Body{Error: Detail{Kind: string(le.Kind), Detail: detail, Fields: le.Fields}}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, Body{Error: Detail{Kind: kindForStatus(fe.Code), Detail: fe.Message}}
	}

	return http.StatusInternalServerError, Body{Error: Detail{Kind: string(ledger.KindStorageFailure), Detail: "internal error"}}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(ledger.KindInvalidInput)
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return string(ledger.KindForbidden)
	case http.StatusNotFound:
		return string(ledger.KindNotFound)
	case http.StatusConflict:
		return string(ledger.KindDuplicateTransaction)
	case http.StatusTooManyRequests:
		return "RateLimited"
	default:
		if status >= http.StatusInternalServerError {
			return string(ledger.KindStorageFailure)
		}
		return http.StatusText(status)
	}
}
