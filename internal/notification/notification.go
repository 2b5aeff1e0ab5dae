package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindTransferCompleted is sent to the receiving wallet of a transfer.
	KindTransferCompleted = "transfer.completed"
	// KindWithdrawalProcessing is sent when a payout is handed to the provider.
	KindWithdrawalProcessing = "withdrawal.processing"
	// KindWithdrawalSettled is sent when a payout is confirmed completed or failed.
	KindWithdrawalSettled = "withdrawal.settled"
	// KindDepositCredited is sent when an on-ramp order lands in a wallet.
	KindDepositCredited = "deposit.credited"
)

// Message describes a ledger event for downstream consumers.
type Message struct {
	Kind          string    `json:"kind"`
	WalletID      string    `json:"walletId"`
	TransactionID string    `json:"transactionId"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status,omitempty"`
	Body          string    `json:"body"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("wallet_id", message.WalletID),
		slog.String("transaction_id", message.TransactionID),
		slog.String("amount", message.Amount),
		slog.String("body", message.Body),
	)
	return nil
}

// Multi fans a message out to several notifiers and returns the first error.
type Multi []Notifier

// Send delivers to every notifier even if an earlier one fails.
func (m Multi) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Dispatch sends msg after a commit. Delivery is best effort: failures are
// logged and never undo the ledger change.
func Dispatch(ctx context.Context, n Notifier, logger *slog.Logger, msg Message) {
	if n == nil {
		return
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	if err := n.Send(ctx, msg); err != nil && logger != nil {
		logger.Warn("notification delivery failed",
			slog.String("kind", msg.Kind),
			slog.String("transaction_id", msg.TransactionID),
			slog.Any("error", err),
		)
	}
}
