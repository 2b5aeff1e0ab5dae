package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxRequestID    = 128
)

// RequestID tags each request with an id that is echoed on the response and
// attached to every log line. A client supplied id is kept if it is short
// printable ASCII; otherwise a time ordered "req_" id is minted.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(HeaderRequestID)
		if !validRequestID(reqID) {
			reqID = ledger.NewID("req")
		}
		c.Set(HeaderRequestID, reqID)
		c.Locals(HeaderRequestID, reqID)
		return c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestID {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
