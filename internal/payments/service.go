package payments

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

const operationTransfer = "transfer"

// Options configures the transfer engine.
type Options struct {
	Limits   config.Limits
	Retry    ledger.RetryPolicy
	Notifier notification.Notifier
	Metrics  *metrics.Ledger
	Logger   *slog.Logger
}

// Service moves funds between wallets.
type Service struct {
	store    ledger.Store
	limits   config.Limits
	retry    ledger.RetryPolicy
	notifier notification.Notifier
	metrics  *metrics.Ledger
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a payment service.
func NewService(store ledger.Store, opts Options) *Service {
	if opts.Limits == (config.Limits{}) {
		opts.Limits = config.DefaultLimits()
	}
	return &Service{
		store:    store,
		limits:   opts.Limits,
		retry:    opts.Retry,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TransferInput captures the data needed to move funds between wallets.
// Amount is the raw client value and is validated by Transfer.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       string
	// RequestorWalletID is the wallet bound to the caller's identity, if any.
	RequestorWalletID string
}

// TransferResult describes the ledger outcome of a transfer.
type TransferResult struct {
	TransactionID      string       `json:"transactionId"`
	Amount             money.Amount `json:"amount"`
	SenderNewBalance   money.Amount `json:"senderNewBalance"`
	ReceiverNewBalance money.Amount `json:"receiverNewBalance"`
	Timestamp          time.Time    `json:"timestamp"`
	Status             string       `json:"status"`
}

// Transfer debits the sender, credits the receiver and records the
// transaction as one atomic unit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (res TransferResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(operationTransfer, outcome(err), started) }()

	from := strings.TrimSpace(input.FromWalletID)
	to := strings.TrimSpace(input.ToWalletID)
	if from == "" || to == "" {
		return TransferResult{}, ledger.Errorf(ledger.KindInvalidInput, "fromWalletId and toWalletId are required")
	}
	if from == to {
		return TransferResult{}, ledger.Errorf(ledger.KindInvalidInput, "cannot send to same wallet")
	}
	amount, err := ledger.ParseAmount(input.Amount, s.limits.MinTransfer, s.limits.MaxTransfer)
	if err != nil {
		return TransferResult{}, err
	}
	if input.RequestorWalletID != "" && input.RequestorWalletID != from {
		return TransferResult{}, ledger.Errorf(ledger.KindForbidden, "wallet %s does not belong to the caller", from)
	}

	// The id is fixed across attempts so a re-run after an unacknowledged
	// commit finds the committed record instead of moving the funds again.
	id := ledger.NewID(ledger.PrefixTransfer)
	retry := s.retry
	retry.OnRetry = func() { s.metrics.Retry(operationTransfer) }
	err = retry.Run(ctx, func() error {
		res = TransferResult{}
		return s.store.Atomically(ctx, []string{from, to}, func(tx ledger.Tx) error {
			done, err := committed(ctx, tx, id)
			if err != nil {
				return err
			}
			if done != nil {
				return replayed(ctx, tx, *done, &res)
			}
			sender, err := lookup(ctx, tx, from, to)
			if err != nil {
				return err
			}
			if sender.Balance < amount {
				return ledger.InsufficientBalance(sender.Balance, amount)
			}
			if res.SenderNewBalance, err = tx.ApplyDelta(ctx, from, -amount); err != nil {
				return err
			}
			if res.ReceiverNewBalance, err = tx.ApplyDelta(ctx, to, amount); err != nil {
				return err
			}
			res.Timestamp = s.now()
			res.TransactionID, err = tx.Append(ctx, ledger.Transaction{
				ID:           id,
				Kind:         ledger.KindTransfer,
				FromWalletID: from,
				ToWalletID:   to,
				Amount:       amount,
				NetAmount:    amount,
				Status:       ledger.StatusCompleted,
				CreatedAt:    res.Timestamp,
			})
			return err
		})
	})
	if err != nil {
		return TransferResult{}, err
	}
	res.Amount = amount
	res.Status = ledger.StatusCompleted

	notification.Dispatch(ctx, s.notifier, s.logger, notification.Message{
		Kind:          notification.KindTransferCompleted,
		WalletID:      to,
		TransactionID: res.TransactionID,
		Amount:        amount.String(),
		Status:        res.Status,
		Body:          fmt.Sprintf("You received %s from wallet %s", amount, from),
		OccurredAt:    res.Timestamp,
	})
	return res, nil
}

// committed returns the transaction with id if an earlier attempt already
// recorded it.
func committed(ctx context.Context, tx ledger.Tx, id string) (*ledger.Transaction, error) {
	t, err := tx.Transaction(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func replayed(ctx context.Context, tx ledger.Tx, t ledger.Transaction, res *TransferResult) error {
	sender, err := tx.Wallet(ctx, t.FromWalletID)
	if err != nil {
		return err
	}
	receiver, err := tx.Wallet(ctx, t.ToWalletID)
	if err != nil {
		return err
	}
	res.TransactionID = t.ID
	res.SenderNewBalance = sender.Balance
	res.ReceiverNewBalance = receiver.Balance
	res.Timestamp = t.CreatedAt
	return nil
}

// lookup loads the sender and confirms the receiver exists, reporting every
// missing wallet at once.
func lookup(ctx context.Context, tx ledger.Tx, from, to string) (ledger.Wallet, error) {
	var missing []string
	sender, err := tx.Wallet(ctx, from)
	if err != nil {
		if !errors.Is(err, ledger.ErrWalletNotFound) {
			return ledger.Wallet{}, err
		}
		missing = append(missing, from)
	}
	if _, err := tx.Wallet(ctx, to); err != nil {
		if !errors.Is(err, ledger.ErrWalletNotFound) {
			return ledger.Wallet{}, err
		}
		missing = append(missing, to)
	}
	if len(missing) > 0 {
		return ledger.Wallet{}, ledger.WalletNotFound(missing...)
	}
	return sender, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(ledger.KindOf(err))
}
