// Package funding credits wallets from settled on-ramp orders.
package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/config"
	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/metrics"
	"github.com/lumen-wallet/lumen_wallet/internal/money"
	"github.com/lumen-wallet/lumen_wallet/internal/notification"
)

const operationDeposit = "deposit"

// Options configures the funding service.
type Options struct {
	Limits      config.Limits
	Retry       ledger.RetryPolicy
	Settlements Settlements
	Notifier    notification.Notifier
	Metrics     *metrics.Ledger
	Logger      *slog.Logger
}

// Service records deposits into wallets.
type Service struct {
	store       ledger.Store
	limits      config.Limits
	retry       ledger.RetryPolicy
	settlements Settlements
	notifier    notification.Notifier
	metrics     *metrics.Ledger
	logger      *slog.Logger
}

// NewService prepares a funding service.
func NewService(store ledger.Store, opts Options) *Service {
	if opts.Limits == (config.Limits{}) {
		opts.Limits = config.DefaultLimits()
	}
	if opts.Settlements == nil {
		opts.Settlements = TrustedSettlements{}
	}
	return &Service{
		store:       store,
		limits:      opts.Limits,
		retry:       opts.Retry,
		settlements: opts.Settlements,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// DepositInput captures a settled on-ramp order.
type DepositInput struct {
	WalletID  string
	Amount    string
	Provider  string
	Reference string
}

// DepositResult represents the ledger outcome of a deposit.
type DepositResult struct {
	TransactionID string
	WalletID      string
	Amount        money.Amount
	Reference     string
	Status        string
	WalletBalance money.Amount
	CreatedAt     time.Time
}

// Deposit credits the wallet once per provider reference. A replay returns
// the original result together with a DuplicateTransaction error.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (res DepositResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(operationDeposit, outcome(err), started) }()

	walletID := strings.TrimSpace(input.WalletID)
	provider := strings.ToLower(strings.TrimSpace(input.Provider))
	reference := strings.TrimSpace(input.Reference)
	if walletID == "" || provider == "" || reference == "" {
		return DepositResult{}, ledger.Errorf(ledger.KindInvalidInput, "walletId, provider and reference are required")
	}
	amount, err := ledger.ParseAmount(input.Amount, s.limits.MinTransfer, s.limits.MaxTransfer)
	if err != nil {
		return DepositResult{}, err
	}
	settlement, err := s.settlements.Verify(ctx, Order{Provider: provider, Reference: reference, WalletID: walletID, Amount: amount.String()})
	if err != nil {
		return DepositResult{}, fmt.Errorf("verify settlement: %w", err)
	}
	key := provider + ":" + settlement.Reference

	var duplicate bool
	retry := s.retry
	retry.OnRetry = func() { s.metrics.Retry(operationDeposit) }
	err = retry.Run(ctx, func() error {
		res, duplicate = DepositResult{}, false
		return s.store.Atomically(ctx, []string{walletID}, func(tx ledger.Tx) error {
			existing, err := tx.TransactionByReference(ctx, ledger.KindDeposit, key)
			switch {
			case err == nil:
				if existing.ToWalletID != walletID || existing.Amount != amount {
					return ledger.Errorf(ledger.KindInvalidInput, "reference %s was already used for a different deposit", key)
				}
				w, err := tx.Wallet(ctx, walletID)
				if err != nil {
					return err
				}
				res = resultOf(existing, w.Balance)
				duplicate = true
				return nil
			case !errors.Is(err, ledger.ErrNotFound):
				return err
			}

			balance, err := tx.ApplyDelta(ctx, walletID, amount)
			if err != nil {
				return err
			}
			rec := ledger.Transaction{
				ID:         ledger.NewID(ledger.PrefixDeposit),
				Kind:       ledger.KindDeposit,
				ToWalletID: walletID,
				Reference:  key,
				Amount:     amount,
				NetAmount:  amount,
				Status:     ledger.StatusCompleted,
				CreatedAt:  time.Now().UTC(),
			}
			if _, err := tx.Append(ctx, rec); err != nil {
				return err
			}
			res = resultOf(rec, balance)
			return nil
		})
	})
	if err != nil {
		return DepositResult{}, err
	}
	if duplicate {
		return res, ledger.Errorf(ledger.KindDuplicateTransaction, "deposit %s already recorded", key)
	}

	notification.Dispatch(ctx, s.notifier, s.logger, notification.Message{
		Kind:          notification.KindDepositCredited,
		WalletID:      walletID,
		TransactionID: res.TransactionID,
		Amount:        amount.String(),
		Status:        res.Status,
		Body:          fmt.Sprintf("%s added to your wallet via %s", amount, provider),
		OccurredAt:    res.CreatedAt,
	})
	return res, nil
}

func resultOf(t ledger.Transaction, balance money.Amount) DepositResult {
	return DepositResult{
		TransactionID: t.ID,
		WalletID:      t.ToWalletID,
		Amount:        t.Amount,
		Reference:     t.Reference,
		Status:        t.Status,
		WalletBalance: balance,
		CreatedAt:     t.CreatedAt,
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(ledger.KindOf(err))
}
