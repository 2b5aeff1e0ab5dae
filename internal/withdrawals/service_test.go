package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/accounts"
	"github.com/lumen-wallet/lumen_wallet/internal/config"
	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/money"
	"github.com/lumen-wallet/lumen_wallet/internal/payments"
)

type fixture struct {
	store    ledger.Store
	repo     accounts.Repository
	accounts *accounts.Service
	svc      *Service
	bankID   string
	walletID string
}

func newFixture(t *testing.T, limits config.Limits) fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	ledger.SeedWallet(store, "w1", money.MustParse("1000.00"))
	ledger.SeedWallet(store, "w2", money.MustParse("50.00"))

	repo := accounts.NewMemoryRepository()
	acctSvc := accounts.NewService(repo, store, "USD")
	bank, err := acctSvc.Add(ctx, "w1", accounts.AddInput{
		Type: accounts.TypeBankAccount, Name: "Checking", AccountNumber: "123456789", RoutingNumber: "021000021",
	})
	if err != nil {
		t.Fatalf("add account: %v", err)
	}
	if _, err := acctSvc.MarkVerified(ctx, bank.ID); err != nil {
		t.Fatalf("verify account: %v", err)
	}
	return fixture{
		store:    store,
		repo:     repo,
		accounts: acctSvc,
		svc:      NewService(store, acctSvc, Options{Limits: limits}),
		bankID:   bank.ID,
		walletID: "w1",
	}
}

func (f fixture) balance(t *testing.T, id string) money.Amount {
	t.Helper()
	w, err := f.store.Wallet(context.Background(), id)
	if err != nil {
		t.Fatalf("wallet %s: %v", id, err)
	}
	return w.Balance
}

func TestWithdrawToBankAccount(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()

	res, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100", Note: "rent"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Fee != money.MustParse("0.25") || res.NetAmount != money.MustParse("99.75") {
		t.Fatalf("unexpected fee split %+v", res)
	}
	if res.Status != ledger.StatusProcessing || res.EstimatedArrival != accounts.ArrivalBankAccount {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.balance(t, "w1"); got != money.MustParse("900") {
		t.Fatalf("expected full amount debited, balance %s", got)
	}

	rec, err := f.svc.Get(ctx, "w1", res.TransactionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.StatusHistory) != 2 || rec.StatusHistory[0].Status != ledger.StatusInitiated || rec.Status != ledger.StatusProcessing {
		t.Fatalf("unexpected history %+v", rec.StatusHistory)
	}
	if rec.Note != "rent" || rec.DestinationAccountID != f.bankID {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := f.svc.Get(ctx, "w2", res.TransactionID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("foreign wallet saw withdrawal: %v", err)
	}
}

func TestWithdrawToEWallet(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	ew, err := f.accounts.Add(ctx, "w1", accounts.AddInput{
		Type: accounts.TypeEWallet, Name: "John", AccountNumber: "john@example.com", EWalletType: "paypal",
	})
	if err != nil {
		t.Fatalf("add ewallet: %v", err)
	}
	if _, err := f.accounts.MarkVerified(ctx, ew.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	res, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: ew.ID, Amount: "250.00"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Fee != money.MustParse("5.00") || res.NetAmount != money.MustParse("245.00") {
		t.Fatalf("unexpected fee split %+v", res)
	}
	if res.EstimatedArrival != accounts.ArrivalEWallet {
		t.Fatalf("unexpected arrival %q", res.EstimatedArrival)
	}
}

func TestWithdrawValidation(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	unverified, _ := f.accounts.Add(ctx, "w1", accounts.AddInput{
		Type: accounts.TypeBankAccount, Name: "Savings", AccountNumber: "987654321", RoutingNumber: "121000248",
	})

	cases := []struct {
		name  string
		input WithdrawInput
		want  error
	}{
		{"missing wallet id", WithdrawInput{DestinationAccountID: f.bankID, Amount: "10"}, ledger.ErrInvalidInput},
		{"missing destination", WithdrawInput{WalletID: "w1", Amount: "10"}, ledger.ErrInvalidInput},
		{"below minimum", WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "0.50"}, ledger.ErrInvalidAmount},
		{"not a number", WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "ten"}, ledger.ErrInvalidAmount},
		{"unknown wallet", WithdrawInput{WalletID: "nope", DestinationAccountID: f.bankID, Amount: "10"}, ledger.ErrWalletNotFound},
		{"unverified destination", WithdrawInput{WalletID: "w1", DestinationAccountID: unverified.ID, Amount: "10"}, ledger.ErrInvalidDestination},
		{"foreign destination", WithdrawInput{WalletID: "w2", DestinationAccountID: f.bankID, Amount: "10"}, ledger.ErrInvalidDestination},
		{"insufficient", WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "1000.01"}, ledger.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Withdraw(ctx, tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if f.balance(t, "w1") != money.MustParse("1000") || ledger.LogLen(f.store) != 0 {
		t.Fatalf("rejected withdrawals changed state")
	}
}

func TestWithdrawFeeMustLeaveNetAmount(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	err := f.repo.Create(ctx, accounts.Account{
		ID: "acc_pricey", WalletID: "w1", Type: accounts.TypeBankAccount, Name: "Pricey", AccountNumber: "1",
		RoutingNumber: "2", IsVerified: true, IsActive: true, Fees: accounts.Fees{Fixed: money.MustParse("5.00")},
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: "acc_pricey", Amount: "5.00"}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestWithdrawLimits(t *testing.T) {
	limits := config.DefaultLimits()
	limits.DailyWithdraw = money.MustParse("150")
	f := newFixture(t, limits)
	ctx := context.Background()

	if _, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100"}); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	_, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100"})
	var lerr *ledger.Error
	if !errors.As(err, &lerr) || lerr.Kind != ledger.KindLimitExceeded || lerr.Fields["window"] != "daily" {
		t.Fatalf("expected daily limit exceeded, got %v", err)
	}

	view, err := f.svc.Limits(ctx, "w1")
	if err != nil {
		t.Fatalf("limits: %v", err)
	}
	if view.DailyLimit != money.MustParse("150") || view.DailyUsed != money.MustParse("100") || view.MonthlyUsed != money.MustParse("100") {
		t.Fatalf("unexpected limits view %+v", view)
	}
	if view.Currency != "USD" {
		t.Fatalf("unexpected currency %q", view.Currency)
	}
}

func TestUsageWindows(t *testing.T) {
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	wd := func(amount string, age time.Duration, status string) ledger.Transaction {
		return ledger.Transaction{Kind: ledger.KindWithdrawal, Amount: money.MustParse(amount), Status: status, CreatedAt: now.Add(-age)}
	}
	u := usageOf([]ledger.Transaction{
		wd("10", time.Hour, ledger.StatusProcessing),
		wd("20", 3*24*time.Hour, ledger.StatusCompleted),
		wd("40", 20*24*time.Hour, ledger.StatusCompleted),
		wd("80", 40*24*time.Hour, ledger.StatusCompleted),
		wd("160", time.Hour, ledger.StatusFailed),
		{Kind: ledger.KindTransfer, Amount: money.MustParse("320"), CreatedAt: now},
	}, now)
	if u.daily != money.MustParse("10") || u.weekly != money.MustParse("30") || u.monthly != money.MustParse("70") {
		t.Fatalf("unexpected usage %+v", u)
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	res, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	first, err := f.svc.Confirm(ctx, res.TransactionID, ledger.StatusCompleted, "Funds transferred successfully")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	second, err := f.svc.Confirm(ctx, res.TransactionID, ledger.StatusCompleted, "")
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if first.Status != ledger.StatusCompleted || len(first.StatusHistory) != 3 || len(second.StatusHistory) != 3 {
		t.Fatalf("confirm not idempotent: %+v / %+v", first.StatusHistory, second.StatusHistory)
	}
	if _, err := f.svc.Confirm(ctx, res.TransactionID, ledger.StatusFailed, ""); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected terminal switch rejected, got %v", err)
	}
	if f.balance(t, "w1") != money.MustParse("900") {
		t.Fatalf("completed payout changed balance")
	}
}

func TestConfirmFailedRefunds(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	res, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	for i := 0; i < 2; i++ {
		rec, err := f.svc.Confirm(ctx, res.TransactionID, ledger.StatusFailed, "Bank rejected payout")
		if err != nil {
			t.Fatalf("confirm failed #%d: %v", i, err)
		}
		if rec.Status != ledger.StatusFailed {
			t.Fatalf("unexpected status %s", rec.Status)
		}
	}
	if got := f.balance(t, "w1"); got != money.MustParse("1000") {
		t.Fatalf("expected single refund, balance %s", got)
	}
	view, err := f.svc.Limits(ctx, "w1")
	if err != nil || view.DailyUsed != 0 {
		t.Fatalf("failed payout counted towards limits: %+v (%v)", view, err)
	}
}

func TestConfirmRejectsBadInput(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	res, _ := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "10"})

	if _, err := f.svc.Confirm(ctx, res.TransactionID, ledger.StatusProcessing, ""); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("expected invalid status rejected, got %v", err)
	}
	if _, err := f.svc.Confirm(ctx, "wd_missing", ledger.StatusCompleted, ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if _, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: fmt.Sprint(i * 10)}); err != nil {
			t.Fatalf("withdraw %d: %v", i, err)
		}
	}

	page, err := f.svc.List(ctx, "w1", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Withdrawals) != 2 || page.Pagination.Total != 3 || page.Pagination.TotalPages != 2 {
		t.Fatalf("unexpected first page %+v", page.Pagination)
	}
	if page.Withdrawals[0].Amount != money.MustParse("30") {
		t.Fatalf("expected newest first, got %s", page.Withdrawals[0].Amount)
	}
	page, _ = f.svc.List(ctx, "w1", 2, 2)
	if len(page.Withdrawals) != 1 {
		t.Fatalf("unexpected second page %+v", page)
	}
	page, _ = f.svc.List(ctx, "w1", 5, 2)
	if len(page.Withdrawals) != 0 {
		t.Fatalf("expected empty page past the end")
	}
}

func TestConcurrentWithdrawalsConserveFunds(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()

	const requests = 25
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		paidOut      money.Amount
		insufficient int
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				paidOut += money.MustParse("100")
			case errors.Is(err, ledger.ErrInsufficientBalance):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if paidOut != money.MustParse("1000") || insufficient != requests-10 {
		t.Fatalf("expected exactly ten payouts, got %s paid and %d rejected", paidOut, insufficient)
	}
	if got := f.balance(t, "w1"); got != 0 {
		t.Fatalf("expected drained wallet, balance %s", got)
	}
	page, err := f.svc.List(ctx, "w1", 1, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Withdrawals) != 10 {
		t.Fatalf("expected ten withdrawal records, got %d", len(page.Withdrawals))
	}
}

func TestWithdrawalsRacingTransfersConserveFunds(t *testing.T) {
	f := newFixture(t, config.DefaultLimits())
	ctx := context.Background()
	transfers := payments.NewService(f.store, payments.Options{})

	const each = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		paidOut  money.Amount
		moved    money.Amount
		rejected int
	)
	record := func(err error, total *money.Amount) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			*total += money.MustParse("100")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	for i := 0; i < each; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: "w1", DestinationAccountID: f.bankID, Amount: "100"})
			record(err, &paidOut)
		}()
		go func() {
			defer wg.Done()
			_, err := transfers.Transfer(ctx, payments.TransferInput{FromWalletID: "w1", ToWalletID: "w2", Amount: "100"})
			record(err, &moved)
		}()
	}
	wg.Wait()

	w1, w2 := f.balance(t, "w1"), f.balance(t, "w2")
	if w1 != 0 || paidOut+moved != money.MustParse("1000") || rejected != each {
		t.Fatalf("unexpected outcome: w1=%s paid=%s moved=%s rejected=%d", w1, paidOut, moved, rejected)
	}
	if w1+w2+paidOut != money.MustParse("1050") || w2 != money.MustParse("50")+moved {
		t.Fatalf("conservation violated: w1=%s w2=%s paid=%s moved=%s", w1, w2, paidOut, moved)
	}
}
