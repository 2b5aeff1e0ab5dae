package ledger

import "github.com/lumen-wallet/lumen_wallet/internal/money"

// ParseAmount converts client input into an Amount within [lo, hi].
func ParseAmount(raw string, lo, hi money.Amount) (money.Amount, error) {
	amount, err := money.Parse(raw)
	if err != nil {
		return 0, Errorf(KindInvalidAmount, "%v", err)
	}
	if amount < lo {
		return 0, Errorf(KindInvalidAmount, "amount must be at least %s", lo)
	}
	if hi > 0 && amount > hi {
		return 0, Errorf(KindInvalidAmount, "amount must not exceed %s", hi)
	}
	return amount, nil
}
