package ledger

import (
	"context"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

// SeedWallet is a test helper that creates a wallet with the given balance, or
// overwrites the balance of an existing one, when using the in-memory store.
func SeedWallet(s Store, id string, balance money.Amount) {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return
	}
	if _, err := mem.Wallet(context.Background(), id); err != nil {
		_, _ = mem.CreateWallet(context.Background(), Wallet{ID: id, Balance: balance})
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	w := mem.wallets[id]
	w.Balance = balance
	mem.wallets[id] = w
}

// InjectCommitFailure makes the next commit of the in-memory store fail with err.
func InjectCommitFailure(s Store, err error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.failCommit = err
	}
}

// LogLen returns the number of recorded transactions in the in-memory store.
func LogLen(s Store) int {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return len(mem.log)
	}
	return -1
}
