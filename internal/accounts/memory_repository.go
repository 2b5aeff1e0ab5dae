package accounts

import (
	"context"
	"sort"
	"sync"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryRepository builds an in-memory account store for tests and local development.
func NewMemoryRepository() Repository {
	return &memoryRepository{accounts: make(map[string]Account)}
}

func (r *memoryRepository) Create(_ context.Context, a Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[a.ID]; exists {
		return ledger.Errorf(ledger.KindInvalidInput, "account %s already exists", a.ID)
	}
	r.accounts[a.ID] = a
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, notFound(id)
	}
	return a, nil
}

func (r *memoryRepository) ListByWallet(_ context.Context, walletID string) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0)
	for _, a := range r.accounts {
		if a.WalletID == walletID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryRepository) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(a *Account) { a.IsActive = active })
}

func (r *memoryRepository) SetVerified(_ context.Context, id string, verified bool) error {
	return r.mutate(id, func(a *Account) { a.IsVerified = verified })
}

func (r *memoryRepository) mutate(id string, fn func(*Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return notFound(id)
	}
	fn(&a)
	r.accounts[id] = a
	return nil
}
