package ledger

import (
	"context"
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

const (
	// KindTransfer is an internal wallet-to-wallet movement.
	KindTransfer = "transfer"
	// KindWithdrawal debits a wallet towards an external destination account.
	KindWithdrawal = "withdrawal"
	// KindDeposit credits a wallet from a settled on-ramp order.
	KindDeposit = "deposit"
)

const (
	StatusInitiated  = "initiated"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DefaultCurrency is applied to wallets provisioned without one.
const DefaultCurrency = "USD"

// Direction filters transaction queries relative to a wallet.
type Direction int

const (
	DirectionEither Direction = iota
	DirectionSent
	DirectionReceived
)

// Wallet is the balance record held by the wallet store.
type Wallet struct {
	ID        string       `json:"id"`
	Balance   money.Amount `json:"balance"`
	Currency  string       `json:"currency"`
	CreatedAt time.Time    `json:"createdAt"`
}

// StatusEntry is one step of a transaction's status history.
type StatusEntry struct {
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Transaction is an immutable ledger record. Only Status and StatusHistory
// grow after creation, and only by appending.
type Transaction struct {
	ID                   string        `json:"id"`
	Kind                 string        `json:"kind"`
	FromWalletID         string        `json:"fromWalletId,omitempty"`
	ToWalletID           string        `json:"toWalletId,omitempty"`
	DestinationAccountID string        `json:"destinationAccountId,omitempty"`
	Reference            string        `json:"reference,omitempty"`
	Amount               money.Amount  `json:"amount"`
	Fee                  money.Amount  `json:"fee"`
	NetAmount            money.Amount  `json:"netAmount"`
	Note                 string        `json:"note,omitempty"`
	Status               string        `json:"status"`
	EstimatedArrival     string        `json:"estimatedArrival,omitempty"`
	StatusHistory        []StatusEntry `json:"statusHistory,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
}

// Involves reports whether walletID is on either side of the transaction.
func (t Transaction) Involves(walletID string) bool {
	return t.FromWalletID == walletID || t.ToWalletID == walletID
}

// Reader is the read side shared by the store and its atomic units.
type Reader interface {
	Wallet(ctx context.Context, id string) (Wallet, error)
	Transaction(ctx context.Context, id string) (Transaction, error)
	Transactions(ctx context.Context, walletID string, dir Direction) ([]Transaction, error)
	TransactionByReference(ctx context.Context, kind, reference string) (Transaction, error)
}

// Tx is one atomic unit of work. Mutations are only visible to other readers
// once the unit commits, and are discarded if the unit returns an error.
type Tx interface {
	Reader
	// ApplyDelta adds delta to the wallet balance, rejecting results below zero.
	ApplyDelta(ctx context.Context, walletID string, delta money.Amount) (money.Amount, error)
	// Append records a new transaction and returns its identifier.
	Append(ctx context.Context, t Transaction) (string, error)
	// AppendStatus moves a transaction to a new status by appending history.
	AppendStatus(ctx context.Context, transactionID string, entry StatusEntry) error
}

// Store is the wallet store plus transaction log behind a single
// transactional resource.
type Store interface {
	Reader
	CreateWallet(ctx context.Context, w Wallet) (Wallet, error)
	Recent(ctx context.Context, limit int) ([]Transaction, error)
	// Wallets lists wallets oldest first.
	Wallets(ctx context.Context, limit int) ([]Wallet, error)
	// Atomically locks walletIDs in a fixed global order and runs fn as one
	// commit-or-abort unit.
	Atomically(ctx context.Context, walletIDs []string, fn func(Tx) error) error
}
