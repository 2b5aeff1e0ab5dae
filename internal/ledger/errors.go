package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

// ErrorKind is the machine-readable class of a ledger failure.
type ErrorKind string

const (
	KindInvalidInput         ErrorKind = "InvalidInput"
	KindInvalidAmount        ErrorKind = "InvalidAmount"
	KindWalletNotFound       ErrorKind = "WalletNotFound"
	KindInsufficientBalance  ErrorKind = "InsufficientBalance"
	KindInvalidDestination   ErrorKind = "InvalidDestination"
	KindLimitExceeded        ErrorKind = "LimitExceeded"
	KindNotFound             ErrorKind = "NotFound"
	KindForbidden            ErrorKind = "Forbidden"
	KindDuplicateTransaction ErrorKind = "DuplicateTransaction"
	KindConcurrencyConflict  ErrorKind = "ConcurrencyConflict"
	KindStorageFailure       ErrorKind = "StorageFailure"
)

// Error carries a kind, a human readable detail and optional structured fields.
type Error struct {
	Kind   ErrorKind
	Detail string
	Fields map[string]any
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
	ErrInvalidAmount        = &Error{Kind: KindInvalidAmount}
	ErrWalletNotFound       = &Error{Kind: KindWalletNotFound}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance}
	ErrInvalidDestination   = &Error{Kind: KindInvalidDestination}
	ErrLimitExceeded        = &Error{Kind: KindLimitExceeded}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrDuplicateTransaction = &Error{Kind: KindDuplicateTransaction}
	ErrConcurrencyConflict  = &Error{Kind: KindConcurrencyConflict}
	ErrStorageFailure       = &Error{Kind: KindStorageFailure}
)

// Errorf builds an Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WalletNotFound names the wallets that could not be found.
func WalletNotFound(ids ...string) *Error {
	return &Error{
		Kind:   KindWalletNotFound,
		Detail: fmt.Sprintf("wallet not found: %s", strings.Join(ids, ", ")),
		Fields: map[string]any{"missing": ids},
	}
}

// InsufficientBalance reports the available and requested figures.
func InsufficientBalance(available, requested money.Amount) *Error {
	return &Error{
		Kind:   KindInsufficientBalance,
		Detail: fmt.Sprintf("available %s, requested %s", available, requested),
		Fields: map[string]any{"available": available, "requested": requested},
	}
}

// Conflict wraps a transient failure that is safe to retry.
func Conflict(err error) *Error {
	return &Error{Kind: KindConcurrencyConflict, Detail: "ledger busy, retry the request", Err: err}
}

// Storage wraps an unexpected persistence failure.
func Storage(err error) *Error {
	return &Error{Kind: KindStorageFailure, Detail: "ledger storage failure", Err: err}
}

// KindOf returns the kind of err, or StorageFailure for foreign errors.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindStorageFailure
}

// Retryable reports whether err may be retried with the same inputs.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
