// Package withdrawals pays wallet funds out to registered destination accounts.
package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/accounts"
	"github.com/lumen-wallet/lumen_wallet/internal/config"
	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/metrics"
	"github.com/lumen-wallet/lumen_wallet/internal/money"
	"github.com/lumen-wallet/lumen_wallet/internal/notification"
)

const (
	operationWithdraw = "withdraw"
	operationConfirm  = "withdraw_confirm"

	defaultPageSize = 10
	maxPageSize     = 100
)

// Destinations resolves the payout account of a withdrawal.
type Destinations interface {
	Destination(ctx context.Context, walletID, accountID string) (accounts.Account, error)
}

// Options configures the withdrawal engine.
type Options struct {
	Limits   config.Limits
	Retry    ledger.RetryPolicy
	Notifier notification.Notifier
	Metrics  *metrics.Ledger
	Logger   *slog.Logger
}

// Service debits wallets towards external destinations and tracks payouts
// until the payout collaborator confirms them.
type Service struct {
	store        ledger.Store
	destinations Destinations
	limits       config.Limits
	retry        ledger.RetryPolicy
	notifier     notification.Notifier
	metrics      *metrics.Ledger
	logger       *slog.Logger
	now          func() time.Time
}

// NewService constructs a withdrawal service.
func NewService(store ledger.Store, destinations Destinations, opts Options) *Service {
	if opts.Limits == (config.Limits{}) {
		opts.Limits = config.DefaultLimits()
	}
	return &Service{
		store:        store,
		destinations: destinations,
		limits:       opts.Limits,
		retry:        opts.Retry,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithdrawInput captures a payout request. Amount is the raw client value.
type WithdrawInput struct {
	WalletID             string
	DestinationAccountID string
	Amount               string
	Note                 string
}

// WithdrawResult describes an accepted payout.
type WithdrawResult struct {
	TransactionID    string       `json:"transactionId"`
	Amount           money.Amount `json:"amount"`
	Fee              money.Amount `json:"fee"`
	NetAmount        money.Amount `json:"netAmount"`
	EstimatedArrival string       `json:"estimatedArrival"`
	Status           string       `json:"status"`
}

// Withdraw debits the full amount and records the payout as processing.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (res WithdrawResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(operationWithdraw, outcome(err), started) }()

	walletID := strings.TrimSpace(input.WalletID)
	destID := strings.TrimSpace(input.DestinationAccountID)
	if walletID == "" {
		return WithdrawResult{}, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	if destID == "" {
		return WithdrawResult{}, ledger.Errorf(ledger.KindInvalidInput, "destinationAccountId is required")
	}
	amount, err := ledger.ParseAmount(input.Amount, s.limits.MinWithdrawal, s.limits.MaxTransfer)
	if err != nil {
		return WithdrawResult{}, err
	}
	if _, err := s.store.Wallet(ctx, walletID); err != nil {
		return WithdrawResult{}, err
	}
	dest, err := s.destinations.Destination(ctx, walletID, destID)
	if err != nil {
		return WithdrawResult{}, err
	}
	fee := dest.Fees.For(amount)
	net := amount - fee
	if net <= 0 {
		return WithdrawResult{}, ledger.Errorf(ledger.KindInvalidAmount, "fee %s leaves nothing to pay out of %s", fee, amount)
	}

	id := ledger.NewID(ledger.PrefixWithdrawal)
	retry := s.retry
	retry.OnRetry = func() { s.metrics.Retry(operationWithdraw) }
	err = retry.Run(ctx, func() error {
		return s.store.Atomically(ctx, []string{walletID}, func(tx ledger.Tx) error {
			// An earlier attempt whose commit was not acknowledged may have landed.
			if _, err := tx.Transaction(ctx, id); err == nil {
				return nil
			} else if !errors.Is(err, ledger.ErrNotFound) {
				return err
			}
			w, err := tx.Wallet(ctx, walletID)
			if err != nil {
				return err
			}
			now := s.now()
			history, err := tx.Transactions(ctx, walletID, ledger.DirectionSent)
			if err != nil {
				return err
			}
			if err := s.checkLimits(usageOf(history, now), amount); err != nil {
				return err
			}
			if w.Balance < amount {
				return ledger.InsufficientBalance(w.Balance, amount)
			}
			if _, err := tx.ApplyDelta(ctx, walletID, -amount); err != nil {
				return err
			}
			_, err = tx.Append(ctx, ledger.Transaction{
				ID:                   id,
				Kind:                 ledger.KindWithdrawal,
				FromWalletID:         walletID,
				DestinationAccountID: dest.ID,
				Amount:               amount,
				Fee:                  fee,
				NetAmount:            net,
				Note:                 strings.TrimSpace(input.Note),
				EstimatedArrival:     dest.EstimatedArrival(),
				StatusHistory: []ledger.StatusEntry{
					{Status: ledger.StatusInitiated, Description: "Withdrawal request received", Timestamp: now},
					{Status: ledger.StatusProcessing, Description: "Payment processing started", Timestamp: now},
				},
				CreatedAt: now,
			})
			return err
		})
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	res = WithdrawResult{
		TransactionID:    id,
		Amount:           amount,
		Fee:              fee,
		NetAmount:        net,
		EstimatedArrival: dest.EstimatedArrival(),
		Status:           ledger.StatusProcessing,
	}
	notification.Dispatch(ctx, s.notifier, s.logger, notification.Message{
		Kind:          notification.KindWithdrawalProcessing,
		WalletID:      walletID,
		TransactionID: id,
		Amount:        amount.String(),
		Status:        res.Status,
		Body:          fmt.Sprintf("Withdrawal of %s is on its way, expected %s", net, res.EstimatedArrival),
	})
	return res, nil
}

// Confirm settles a processing payout. Re-applying the current terminal
// status is a no-op; a failed payout refunds the full amount.
func (s *Service) Confirm(ctx context.Context, transactionID, status, description string) (rec ledger.Transaction, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(operationConfirm, outcome(err), started) }()

	if status != ledger.StatusCompleted && status != ledger.StatusFailed {
		return ledger.Transaction{}, ledger.Errorf(ledger.KindInvalidInput, "status must be %s or %s", ledger.StatusCompleted, ledger.StatusFailed)
	}
	current, err := s.withdrawal(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	applied := false
	retry := s.retry
	retry.OnRetry = func() { s.metrics.Retry(operationConfirm) }
	err = retry.Run(ctx, func() error {
		applied = false
		return s.store.Atomically(ctx, []string{current.FromWalletID}, func(tx ledger.Tx) error {
			t, err := tx.Transaction(ctx, transactionID)
			if err != nil {
				return err
			}
			switch {
			case t.Status == status:
				return nil
			case terminal(t.Status):
				return ledger.Errorf(ledger.KindInvalidInput, "withdrawal %s is already %s", transactionID, t.Status)
			}
			if description == "" {
				description = "Payout " + status
			}
			if err := tx.AppendStatus(ctx, transactionID, ledger.StatusEntry{
				Status: status, Description: description, Timestamp: s.now(),
			}); err != nil {
				return err
			}
			if status == ledger.StatusFailed {
				if _, err := tx.ApplyDelta(ctx, t.FromWalletID, t.Amount); err != nil {
					return err
				}
			}
			applied = true
			return nil
		})
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	rec, err = s.store.Transaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if applied {
		notification.Dispatch(ctx, s.notifier, s.logger, notification.Message{
			Kind:          notification.KindWithdrawalSettled,
			WalletID:      rec.FromWalletID,
			TransactionID: rec.ID,
			Amount:        rec.Amount.String(),
			Status:        rec.Status,
			Body:          fmt.Sprintf("Withdrawal of %s %s", rec.NetAmount, rec.Status),
		})
	}
	return rec, nil
}

// Get returns one of the wallet's withdrawals with its status history.
func (s *Service) Get(ctx context.Context, walletID, transactionID string) (ledger.Transaction, error) {
	rec, err := s.withdrawal(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if rec.FromWalletID != walletID {
		return ledger.Transaction{}, ledger.Errorf(ledger.KindNotFound, "withdrawal %s not found", transactionID)
	}
	return rec, nil
}

// Page is one page of a wallet's withdrawals, newest first.
type Page struct {
	Withdrawals []ledger.Transaction `json:"withdrawals"`
	Pagination  Pagination           `json:"pagination"`
}

// Pagination describes the position of a Page.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// List pages through the wallet's withdrawals.
func (s *Service) List(ctx context.Context, walletID string, page, limit int) (Page, error) {
	if walletID == "" {
		return Page{}, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	sent, err := s.store.Transactions(ctx, walletID, ledger.DirectionSent)
	if err != nil {
		return Page{}, err
	}
	all := make([]ledger.Transaction, 0, len(sent))
	for _, t := range sent {
		if t.Kind == ledger.KindWithdrawal {
			all = append(all, t)
		}
	}
	out := Page{
		Withdrawals: []ledger.Transaction{},
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      len(all),
			TotalPages: (len(all) + limit - 1) / limit,
		},
	}
	if start := (page - 1) * limit; start < len(all) {
		out.Withdrawals = all[start:min(start+limit, len(all))]
	}
	return out, nil
}

// LimitsView reports the configured limits and rolling usage of a wallet.
type LimitsView struct {
	DailyLimit   money.Amount `json:"dailyLimit"`
	WeeklyLimit  money.Amount `json:"weeklyLimit"`
	MonthlyLimit money.Amount `json:"monthlyLimit"`
	DailyUsed    money.Amount `json:"dailyUsed"`
	WeeklyUsed   money.Amount `json:"weeklyUsed"`
	MonthlyUsed  money.Amount `json:"monthlyUsed"`
	Currency     string       `json:"currency"`
}

// Limits returns the wallet's withdrawal limits and usage.
func (s *Service) Limits(ctx context.Context, walletID string) (LimitsView, error) {
	if walletID == "" {
		return LimitsView{}, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	w, err := s.store.Wallet(ctx, walletID)
	if err != nil {
		return LimitsView{}, err
	}
	sent, err := s.store.Transactions(ctx, walletID, ledger.DirectionSent)
	if err != nil {
		return LimitsView{}, err
	}
	u := usageOf(sent, s.now())
	currency := w.Currency
	if currency == "" {
		currency = s.limits.Currency
	}
	return LimitsView{
		DailyLimit:   s.limits.DailyWithdraw,
		WeeklyLimit:  s.limits.WeeklyWithdraw,
		MonthlyLimit: s.limits.MonthlyWithdraw,
		DailyUsed:    u.daily,
		WeeklyUsed:   u.weekly,
		MonthlyUsed:  u.monthly,
		Currency:     currency,
	}, nil
}

func (s *Service) checkLimits(u usage, amount money.Amount) error {
	windows := []struct {
		name  string
		used  money.Amount
		limit money.Amount
	}{
		{"daily", u.daily, s.limits.DailyWithdraw},
		{"weekly", u.weekly, s.limits.WeeklyWithdraw},
		{"monthly", u.monthly, s.limits.MonthlyWithdraw},
	}
	for _, w := range windows {
		if w.limit > 0 && w.used+amount > w.limit {
			return &ledger.Error{
				Kind:   ledger.KindLimitExceeded,
				Detail: fmt.Sprintf("%s withdrawal limit of %s exceeded", w.name, w.limit),
				Fields: map[string]any{"window": w.name, "limit": w.limit, "used": w.used, "requested": amount},
			}
		}
	}
	return nil
}

func (s *Service) withdrawal(ctx context.Context, transactionID string) (ledger.Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return ledger.Transaction{}, ledger.Errorf(ledger.KindInvalidInput, "transaction id is required")
	}
	rec, err := s.store.Transaction(ctx, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if rec.Kind != ledger.KindWithdrawal {
		return ledger.Transaction{}, ledger.Errorf(ledger.KindNotFound, "withdrawal %s not found", transactionID)
	}
	return rec, nil
}

type usage struct {
	daily, weekly, monthly money.Amount
}

// usageOf sums non-failed withdrawals over rolling 24h, 7d and 30d windows.
func usageOf(sent []ledger.Transaction, now time.Time) usage {
	var u usage
	for _, t := range sent {
		if t.Kind != ledger.KindWithdrawal || t.Status == ledger.StatusFailed {
			continue
		}
		age := now.Sub(t.CreatedAt)
		if age < 24*time.Hour {
			u.daily += t.Amount
		}
		if age < 7*24*time.Hour {
			u.weekly += t.Amount
		}
		if age < 30*24*time.Hour {
			u.monthly += t.Amount
		}
	}
	return u
}

func terminal(status string) bool {
	return status == ledger.StatusCompleted || status == ledger.StatusFailed
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(ledger.KindOf(err))
}
