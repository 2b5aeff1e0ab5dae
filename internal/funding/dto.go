package funding

import "github.com/lumen-wallet/lumen_wallet/internal/money"

// DepositRequest is posted by the on-ramp collaborator once an order settles.
type DepositRequest struct {
	WalletID  string      `json:"walletId"`
	Amount    money.Input `json:"amount"`
	Provider  string      `json:"provider"`
	Reference string      `json:"reference"`
}

// DepositResponse represents the API response for a credited deposit.
type DepositResponse struct {
	TransactionID string       `json:"transactionId"`
	WalletID      string       `json:"walletId"`
	Amount        money.Amount `json:"amount"`
	Reference     string       `json:"reference"`
	Status        string       `json:"status"`
	WalletBalance money.Amount `json:"walletBalance"`
	Duplicate     bool         `json:"duplicate"`
}
