package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

const (
	TypeBankAccount = "bank_account"
	TypeEWallet     = "ewallet"
)

// Estimated arrival of a payout per destination type.
const (
	ArrivalBankAccount = "1-3 business days"
	ArrivalEWallet     = "Within 24 hours"
)

// Fees is the payout fee schedule of a destination account. A zero value
// field is treated as unset.
type Fees struct {
	Fixed      money.Amount    `json:"fixed,omitempty"`
	Percentage decimal.Decimal `json:"percentage"`
}

// DefaultFees returns the schedule applied to new accounts of the given type.
func DefaultFees(accountType string) Fees {
	switch accountType {
	case TypeBankAccount:
		return Fees{Fixed: money.MustParse("0.25"), Percentage: decimal.RequireFromString("0.1")}
	case TypeEWallet:
		return Fees{Percentage: decimal.RequireFromString("2")}
	default:
		return Fees{}
	}
}

// For computes the fee for a payout of amount: the larger of the fixed fee and
// the percentage when both are set, otherwise whichever is set. The
// percentage is rounded half-up to minor units.
func (f Fees) For(amount money.Amount) money.Amount {
	var pct money.Amount
	if !f.Percentage.IsZero() {
		pct = amount.Percent(f.Percentage)
	}
	return max(f.Fixed, pct)
}

// Account is a payout destination registered by a wallet owner.
type Account struct {
	ID            string    `json:"id"`
	WalletID      string    `json:"walletId"`
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"accountNumber"`
	RoutingNumber string    `json:"routingNumber,omitempty"`
	BankName      string    `json:"bankName,omitempty"`
	EWalletType   string    `json:"ewalletType,omitempty"`
	Currency      string    `json:"currency"`
	IsVerified    bool      `json:"isVerified"`
	IsActive      bool      `json:"isActive"`
	Fees          Fees      `json:"fees"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EstimatedArrival reports how long a payout to the account usually takes.
func (a Account) EstimatedArrival() string {
	if a.Type == TypeEWallet {
		return ArrivalEWallet
	}
	return ArrivalBankAccount
}

// Verification acknowledges a verification request.
type Verification struct {
	AccountID      string `json:"accountId"`
	VerificationID string `json:"verificationId"`
	EstimatedTime  string `json:"estimatedTime"`
	Message        string `json:"message"`
}
