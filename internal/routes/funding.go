package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumen-wallet/lumen_wallet/internal/accounts"
	"github.com/lumen-wallet/lumen_wallet/internal/funding"
	"github.com/lumen-wallet/lumen_wallet/internal/wallet"
	"github.com/lumen-wallet/lumen_wallet/internal/withdrawals"
)

// RegisterInternalRoutes wires the callbacks used by the provisioning,
// on-ramp, payout and verification collaborators.
func RegisterInternalRoutes(r fiber.Router, wallets *wallet.Handler, deposits *funding.Handler,
	payouts *withdrawals.Handler, accts *accounts.Handler, idempotency fiber.Handler) {
	r.Post("/wallets", wallets.Create)
	r.Post("/deposits", idempotency, deposits.Deposit)
	r.Post("/withdrawals/:transactionId/confirm", payouts.Confirm)
	r.Post("/accounts/:accountId/verified", accts.Verified)
}
