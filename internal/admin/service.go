// Package admin serves read-only views over the ledger for operators and merchants.
package admin

import (
	"context"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

const (
	defaultRecent = 50
	maxRecent     = 500
)

// Service computes the views from the wallet store and transaction log.
type Service struct {
	store ledger.Store
}

// NewService builds an admin service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// RecentTransactions returns the newest transactions across all wallets.
func (s *Service) RecentTransactions(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	if limit < 1 {
		limit = defaultRecent
	}
	return s.store.Recent(ctx, min(limit, maxRecent))
}

// Wallets lists provisioned wallets, oldest first.
func (s *Service) Wallets(ctx context.Context, limit int) ([]ledger.Wallet, error) {
	if limit < 1 {
		limit = defaultRecent
	}
	return s.store.Wallets(ctx, min(limit, maxRecent))
}

// MerchantSummary aggregates what a wallet has received.
type MerchantSummary struct {
	WalletID     string       `json:"walletId"`
	Balance      money.Amount `json:"balance"`
	TotalSales   money.Amount `json:"totalSales"`
	Transactions int          `json:"transactions"`
	Currency     string       `json:"currency"`
}

// MerchantSummary totals the completed incoming transfers and deposits of a wallet.
func (s *Service) MerchantSummary(ctx context.Context, walletID string) (MerchantSummary, error) {
	if walletID == "" {
		return MerchantSummary{}, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	w, err := s.store.Wallet(ctx, walletID)
	if err != nil {
		return MerchantSummary{}, err
	}
	received, err := s.store.Transactions(ctx, walletID, ledger.DirectionReceived)
	if err != nil {
		return MerchantSummary{}, err
	}
	out := MerchantSummary{WalletID: w.ID, Balance: w.Balance, Currency: w.Currency}
	for _, t := range received {
		if t.Status != ledger.StatusCompleted {
			continue
		}
		out.TotalSales += t.Amount
		out.Transactions++
	}
	return out, nil
}
