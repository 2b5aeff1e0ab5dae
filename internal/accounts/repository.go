package accounts

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumen-wallet/lumen_wallet/internal/ledger"
	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

//go:embed schema.sql
var schema string

const foreignKeyViolation = "23503"

// Repository persists destination accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	Get(ctx context.Context, id string) (Account, error)
	ListByWallet(ctx context.Context, walletID string) ([]Account, error)
	SetActive(ctx context.Context, id string, active bool) error
	SetVerified(ctx context.Context, id string, verified bool) error
}

func notFound(id string) error {
	return ledger.Errorf(ledger.KindNotFound, "account %s not found", id)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the account table. The ledger schema must exist first.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply accounts schema: %w", err)
	}
	return nil
}

const accountColumns = `id, wallet_id, type, name, account_number, routing_number, bank_name,
        ewallet_type, currency, is_verified, is_active, fee_fixed, fee_percentage::text, created_at`

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, a Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO destination_accounts (id, wallet_id, type, name, account_number,
        routing_number, bank_name, ewallet_type, currency, is_verified, is_active, fee_fixed, fee_percentage, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::numeric, $14)`,
		a.ID, a.WalletID, a.Type, a.Name, a.AccountNumber, a.RoutingNumber, a.BankName, a.EWalletType,
		a.Currency, a.IsVerified, a.IsActive, int64(a.Fees.Fixed), a.Fees.Percentage.String(), a.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ledger.WalletNotFound(a.WalletID)
	}
	if err != nil {
		return ledger.Classify(err)
	}
	return nil
}

// Get fetches one account by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM destination_accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, notFound(id)
	}
	if err != nil {
		return Account{}, ledger.Classify(err)
	}
	return a, nil
}

// ListByWallet returns the wallet's accounts, oldest first.
func (r *PostgresRepository) ListByWallet(ctx context.Context, walletID string) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM destination_accounts
        WHERE wallet_id = $1 ORDER BY created_at, id`, walletID)
	if err != nil {
		return nil, ledger.Classify(err)
	}
	defer rows.Close()
	out := make([]Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, ledger.Classify(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Classify(err)
	}
	return out, nil
}

// SetActive toggles the active flag.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, `UPDATE destination_accounts SET is_active = $2 WHERE id = $1`, id, active)
}

// SetVerified toggles the verified flag.
func (r *PostgresRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	return r.update(ctx, `UPDATE destination_accounts SET is_verified = $2 WHERE id = $1`, id, verified)
}

func (r *PostgresRepository) update(ctx context.Context, sql, id string, flag bool) error {
	cmd, err := r.db.Exec(ctx, sql, id, flag)
	if err != nil {
		return ledger.Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a         Account
		routing   *string
		bank      *string
		ewallet   *string
		fixed     int64
		pct       string
		createdAt time.Time
	)
	if err := row.Scan(&a.ID, &a.WalletID, &a.Type, &a.Name, &a.AccountNumber, &routing, &bank,
		&ewallet, &a.Currency, &a.IsVerified, &a.IsActive, &fixed, &pct, &createdAt); err != nil {
		return Account{}, err
	}
	percentage, err := decimal.NewFromString(pct)
	if err != nil {
		return Account{}, fmt.Errorf("account %s fee percentage: %w", a.ID, err)
	}
	a.RoutingNumber = deref(routing)
	a.BankName = deref(bank)
	a.EWalletType = deref(ewallet)
	a.Fees = Fees{Fixed: money.Amount(fixed), Percentage: percentage}
	a.CreatedAt = createdAt.UTC()
	return a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
