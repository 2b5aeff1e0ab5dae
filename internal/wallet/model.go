package wallet

import (
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   money.Amount
	Currency string
	AsOf     time.Time
}

// Summary splits a wallet's funds into what can be spent now and what is held
// by withdrawals that have not settled.
type Summary struct {
	Available   money.Amount `json:"available"`
	Pending     money.Amount `json:"pending"`
	Total       money.Amount `json:"total"`
	Currency    string       `json:"currency"`
	LastUpdated time.Time    `json:"lastUpdated"`
}
