package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
)

// Service is the read surface over the ledger plus wallet provisioning.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	WalletID string
	Currency string
}

// Create provisions an empty wallet. The provisioning collaborator usually
// supplies its own identifier; one is generated otherwise.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	id := strings.TrimSpace(input.WalletID)
	if id == "" {
		id = uuid.NewString()
	}
	return s.store.CreateWallet(ctx, ledger.Wallet{
		ID:        id,
		Currency:  strings.ToUpper(strings.TrimSpace(input.Currency)),
		CreatedAt: time.Now().UTC(),
	})
}

// Get retrieves the wallet record.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	if strings.TrimSpace(id) == "" {
		return ledger.Wallet{}, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	return s.store.Wallet(ctx, id)
}

// Balance returns the current balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: w.Balance, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}

// Summary reports the caller's spendable balance alongside the amount held by
// withdrawals still in flight. Pending funds were already debited, so the
// total is what the wallet holds once every withdrawal settles or fails.
func (s *Service) Summary(ctx context.Context, id string) (Summary, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	sent, err := s.store.Transactions(ctx, w.ID, ledger.DirectionSent)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Available: w.Balance, Currency: w.Currency, LastUpdated: time.Now().UTC()}
	for _, t := range sent {
		if t.Kind != ledger.KindWithdrawal {
			continue
		}
		if t.Status == ledger.StatusInitiated || t.Status == ledger.StatusProcessing {
			out.Pending += t.Amount
		}
	}
	out.Total = out.Available + out.Pending
	return out, nil
}

// Received lists transactions credited to the wallet, newest first.
func (s *Service) Received(ctx context.Context, id string) ([]ledger.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	return s.store.Transactions(ctx, id, ledger.DirectionReceived)
}

// History lists every transaction the wallet sent or received, newest first.
// Entries are unique by transaction id even if a record names the wallet on
// both sides.
func (s *Service) History(ctx context.Context, id string) ([]ledger.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	txs, err := s.store.Transactions(ctx, id, ledger.DirectionEither)
	if err != nil {
		return nil, err
	}
	return dedupe(txs), nil
}

func dedupe(txs []ledger.Transaction) []ledger.Transaction {
	seen := make(map[string]struct{}, len(txs))
	out := txs[:0]
	for _, t := range txs {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
