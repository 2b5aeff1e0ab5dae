package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
)

const (
	idPrefix              = "acc"
	verificationPrefix    = "ver"
	verificationETA       = "1-2 business days"
	verificationInitiated = "Account verification initiated"
)

// Wallets confirms that the owning wallet of an account exists.
type Wallets interface {
	Wallet(ctx context.Context, id string) (ledger.Wallet, error)
}

// Service manages the payout destinations of wallets.
type Service struct {
	repo     Repository
	wallets  Wallets
	currency string
	now      func() time.Time
}

// NewService builds an account service. New accounts are denominated in currency.
func NewService(repo Repository, wallets Wallets, currency string) *Service {
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	return &Service{repo: repo, wallets: wallets, currency: currency, now: func() time.Time { return time.Now().UTC() }}
}

// AddInput captures the fields of a new destination account.
type AddInput struct {
	Type          string
	Name          string
	AccountNumber string
	RoutingNumber string
	BankName      string
	EWalletType   string
}

// List returns the accounts registered by the wallet.
func (s *Service) List(ctx context.Context, walletID string) ([]Account, error) {
	if walletID == "" {
		return nil, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	return s.repo.ListByWallet(ctx, walletID)
}

// Add registers a new destination. It starts unverified and active with the
// default fee schedule of its type.
func (s *Service) Add(ctx context.Context, walletID string, input AddInput) (Account, error) {
	if walletID == "" {
		return Account{}, ledger.Errorf(ledger.KindInvalidInput, "wallet id is required")
	}
	input.Type = strings.TrimSpace(input.Type)
	input.Name = strings.TrimSpace(input.Name)
	input.AccountNumber = strings.TrimSpace(input.AccountNumber)
	if input.Type == "" || input.Name == "" || input.AccountNumber == "" {
		return Account{}, ledger.Errorf(ledger.KindInvalidInput, "missing required fields")
	}
	switch input.Type {
	case TypeBankAccount:
		if strings.TrimSpace(input.RoutingNumber) == "" {
			return Account{}, ledger.Errorf(ledger.KindInvalidInput, "routing number is required for bank accounts")
		}
	case TypeEWallet:
		if strings.TrimSpace(input.EWalletType) == "" {
			return Account{}, ledger.Errorf(ledger.KindInvalidInput, "ewallet type is required for ewallet accounts")
		}
	default:
		return Account{}, ledger.Errorf(ledger.KindInvalidInput, "unsupported account type %q", input.Type)
	}
	if _, err := s.wallets.Wallet(ctx, walletID); err != nil {
		return Account{}, err
	}

	account := Account{
		ID:            ledger.NewID(idPrefix),
		WalletID:      walletID,
		Type:          input.Type,
		Name:          input.Name,
		AccountNumber: input.AccountNumber,
		RoutingNumber: strings.TrimSpace(input.RoutingNumber),
		BankName:      strings.TrimSpace(input.BankName),
		EWalletType:   strings.TrimSpace(input.EWalletType),
		Currency:      s.currency,
		IsActive:      true,
		Fees:          DefaultFees(input.Type),
		CreatedAt:     s.now(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Get returns the wallet's account. Accounts of other wallets are reported as
// not found.
func (s *Service) Get(ctx context.Context, walletID, accountID string) (Account, error) {
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if a.WalletID != walletID {
		return Account{}, notFound(accountID)
	}
	return a, nil
}

// Remove deactivates the account. History that references it stays intact.
func (s *Service) Remove(ctx context.Context, walletID, accountID string) error {
	if _, err := s.Get(ctx, walletID, accountID); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, accountID, false)
}

// RequestVerification starts verification with the external verifier.
func (s *Service) RequestVerification(ctx context.Context, walletID, accountID string) (Verification, error) {
	if _, err := s.Get(ctx, walletID, accountID); err != nil {
		return Verification{}, err
	}
	return Verification{
		AccountID:      accountID,
		VerificationID: ledger.NewID(verificationPrefix),
		EstimatedTime:  verificationETA,
		Message:        verificationInitiated,
	}, nil
}

// MarkVerified records the verifier's approval.
func (s *Service) MarkVerified(ctx context.Context, accountID string) (Account, error) {
	if err := s.repo.SetVerified(ctx, accountID, true); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, accountID)
}

// Destination resolves the payout target of a withdrawal. Unknown, foreign,
// unverified and inactive accounts are all InvalidDestination.
func (s *Service) Destination(ctx context.Context, walletID, accountID string) (Account, error) {
	a, err := s.Get(ctx, walletID, accountID)
	if errors.Is(err, ledger.ErrNotFound) {
		return Account{}, ledger.Errorf(ledger.KindInvalidDestination, "destination account %s not found", accountID)
	}
	if err != nil {
		return Account{}, err
	}
	if !a.IsVerified {
		return Account{}, ledger.Errorf(ledger.KindInvalidDestination, "destination account %s is not verified", accountID)
	}
	if !a.IsActive {
		return Account{}, ledger.Errorf(ledger.KindInvalidDestination, "destination account %s is inactive", accountID)
	}
	return a, nil
}
