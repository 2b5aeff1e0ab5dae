package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalUserID   = "user_id"
	LocalWalletID = "wallet_id"

	HeaderUserID        = "X-User-ID"
	HeaderWalletID      = "X-Wallet-ID"
	HeaderInternalToken = "X-Internal-Token"
)

// Claims are the identity provider's access token claims.
type Claims struct {
	WalletID string `json:"wallet_id"`
	jwt.RegisteredClaims
}

// Identity binds the caller's user and wallet to the request. With a secret
// it verifies an HS256 bearer token issued by the identity provider;
// otherwise it trusts the gateway's X-User-ID and X-Wallet-ID headers.
func Identity(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		var userID, walletID string
		if secret != "" {
			authz := c.Get(fiber.HeaderAuthorization)
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
			}
			claims := new(Claims)
			token, err := parser.ParseWithClaims(strings.TrimSpace(authz[len("Bearer "):]), claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			userID, walletID = claims.Subject, claims.WalletID
		} else {
			userID = strings.TrimSpace(c.Get(HeaderUserID))
			walletID = strings.TrimSpace(c.Get(HeaderWalletID))
		}
		if walletID == "" {
			return fiber.NewError(http.StatusUnauthorized, "no wallet bound to the caller")
		}
		c.Locals(LocalUserID, userID)
		c.Locals(LocalWalletID, walletID)
		return c.Next()
	}
}

// InternalToken guards collaborator endpoints with a shared token. An empty
// token disables the check.
func InternalToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		got := c.Get(HeaderInternalToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "invalid internal token")
		}
		return c.Next()
	}
}
