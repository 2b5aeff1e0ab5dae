package ledger

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

//go:embed schema.sql
var schema string

const txColumns = `id, kind, COALESCE(from_wallet_id, ''), COALESCE(to_wallet_id, ''),
        COALESCE(destination_account_id, ''), COALESCE(reference, ''), amount, fee, net_amount,
        note, status, estimated_arrival, created_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps wallets and the transaction log in one PostgreSQL
// database so every unit of work is a single database transaction.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed store. A positive timeout
// bounds every atomic unit.
func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

// EnsureSchema creates the ledger tables when they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// CreateWallet provisions a wallet record.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) (Wallet, error) {
	if w.ID == "" {
		return Wallet{}, Errorf(KindInvalidInput, "wallet id is required")
	}
	if w.Balance < 0 {
		return Wallet{}, Errorf(KindInvalidAmount, "opening balance cannot be negative")
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	cmd, err := s.db.Exec(ctx, `INSERT INTO wallets (id, balance, currency, created_at)
        VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`, w.ID, int64(w.Balance), w.Currency, w.CreatedAt)
	if err != nil {
		return Wallet{}, Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return Wallet{}, Errorf(KindInvalidInput, "wallet %s already exists", w.ID)
	}
	return w, nil
}

// Wallet fetches a wallet balance record.
func (s *PostgresStore) Wallet(ctx context.Context, id string) (Wallet, error) {
	return walletByID(ctx, s.db, id)
}

// Transaction fetches one transaction with its status history.
func (s *PostgresStore) Transaction(ctx context.Context, id string) (Transaction, error) {
	return transactionByID(ctx, s.db, id)
}

// TransactionByReference finds a transaction by its external reference.
func (s *PostgresStore) TransactionByReference(ctx context.Context, kind, reference string) (Transaction, error) {
	return transactionByReference(ctx, s.db, kind, reference)
}

// Transactions lists the wallet's transactions newest first.
func (s *PostgresStore) Transactions(ctx context.Context, walletID string, dir Direction) ([]Transaction, error) {
	return transactionsForWallet(ctx, s.db, walletID, dir)
}

// Recent lists the newest transactions across all wallets.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM transactions
        ORDER BY created_at DESC, seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, Classify(err)
	}
	return collectTransactions(ctx, s.db, rows)
}

// Wallets lists wallets oldest first.
func (s *PostgresStore) Wallets(ctx context.Context, limit int) ([]Wallet, error) {
	rows, err := s.db.Query(ctx, `SELECT id, balance, currency, created_at FROM wallets
        ORDER BY created_at, id LIMIT $1`, limit)
	if err != nil {
		return nil, Classify(err)
	}
	defer rows.Close()
	out := make([]Wallet, 0)
	for rows.Next() {
		var (
			w       Wallet
			balance int64
		)
		if err := rows.Scan(&w.ID, &balance, &w.Currency, &w.CreatedAt); err != nil {
			return nil, Classify(err)
		}
		w.Balance = money.Amount(balance)
		w.CreatedAt = w.CreatedAt.UTC()
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// Atomically runs fn inside a database transaction after locking the wallet
// rows in id order.
func (s *PostgresStore) Atomically(ctx context.Context, walletIDs []string, fn func(Tx) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Classify(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ids := lockOrder(walletIDs)
	locked := make(map[string]struct{}, len(ids))
	rows, err := tx.Query(ctx, `SELECT id FROM wallets WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return Classify(err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return Classify(err)
		}
		locked[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Classify(err)
	}

	if err := fn(&pgTx{tx: tx, locked: locked}); err != nil {
		return err
	}
	// A failed COMMIT may still have been applied by the server, so it is
	// never reported as retryable.
	if err := tx.Commit(ctx); err != nil {
		return Storage(err)
	}
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	locked map[string]struct{}
}

func (t *pgTx) Wallet(ctx context.Context, id string) (Wallet, error) {
	return walletByID(ctx, t.tx, id)
}

func (t *pgTx) ApplyDelta(ctx context.Context, walletID string, delta money.Amount) (money.Amount, error) {
	if _, ok := t.locked[walletID]; !ok {
		if _, err := t.Wallet(ctx, walletID); err != nil {
			return 0, err
		}
		return 0, Storage(fmt.Errorf("wallet %s is not locked by this unit", walletID))
	}
	var balance int64
	err := t.tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2
        WHERE id = $1 AND balance + $2 >= 0 RETURNING balance`, walletID, int64(delta)).Scan(&balance)
	if err == nil {
		return money.Amount(balance), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, Classify(err)
	}
	w, werr := t.Wallet(ctx, walletID)
	if werr != nil {
		return 0, werr
	}
	return 0, InsufficientBalance(w.Balance, -delta)
}

func (t *pgTx) Append(ctx context.Context, rec Transaction) (string, error) {
	rec = prepareAppend(rec)
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (id, kind, from_wallet_id, to_wallet_id,
        destination_account_id, reference, amount, fee, net_amount, note, status, estimated_arrival, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.Kind, nullIfEmpty(rec.FromWalletID), nullIfEmpty(rec.ToWalletID),
		nullIfEmpty(rec.DestinationAccountID), nullIfEmpty(rec.Reference),
		int64(rec.Amount), int64(rec.Fee), int64(rec.NetAmount), rec.Note, rec.Status,
		rec.EstimatedArrival, rec.CreatedAt)
	if err != nil {
		return "", Classify(err)
	}
	for _, entry := range rec.StatusHistory {
		if err := insertStatus(ctx, t.tx, rec.ID, entry); err != nil {
			return "", err
		}
	}
	return rec.ID, nil
}

func (t *pgTx) AppendStatus(ctx context.Context, transactionID string, entry StatusEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cmd, err := t.tx.Exec(ctx, `UPDATE transactions SET status = $2 WHERE id = $1`, transactionID, entry.Status)
	if err != nil {
		return Classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return Errorf(KindNotFound, "transaction %s not found", transactionID)
	}
	return insertStatus(ctx, t.tx, transactionID, entry)
}

func (t *pgTx) Transaction(ctx context.Context, id string) (Transaction, error) {
	return transactionByID(ctx, t.tx, id)
}

func (t *pgTx) TransactionByReference(ctx context.Context, kind, reference string) (Transaction, error) {
	return transactionByReference(ctx, t.tx, kind, reference)
}

func (t *pgTx) Transactions(ctx context.Context, walletID string, dir Direction) ([]Transaction, error) {
	return transactionsForWallet(ctx, t.tx, walletID, dir)
}

func walletByID(ctx context.Context, q querier, id string) (Wallet, error) {
	var (
		w       Wallet
		balance int64
	)
	err := q.QueryRow(ctx, `SELECT id, balance, currency, created_at FROM wallets WHERE id = $1`, id).
		Scan(&w.ID, &balance, &w.Currency, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, WalletNotFound(id)
		}
		return Wallet{}, Classify(err)
	}
	w.Balance = money.Amount(balance)
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func transactionByID(ctx context.Context, q querier, id string) (Transaction, error) {
	rows, err := q.Query(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return Transaction{}, Classify(err)
	}
	txs, err := collectTransactions(ctx, q, rows)
	if err != nil {
		return Transaction{}, err
	}
	if len(txs) == 0 {
		return Transaction{}, Errorf(KindNotFound, "transaction %s not found", id)
	}
	return txs[0], nil
}

func transactionByReference(ctx context.Context, q querier, kind, reference string) (Transaction, error) {
	rows, err := q.Query(ctx, `SELECT `+txColumns+` FROM transactions WHERE kind = $1 AND reference = $2`, kind, reference)
	if err != nil {
		return Transaction{}, Classify(err)
	}
	txs, err := collectTransactions(ctx, q, rows)
	if err != nil {
		return Transaction{}, err
	}
	if len(txs) == 0 {
		return Transaction{}, Errorf(KindNotFound, "no %s with reference %s", kind, reference)
	}
	return txs[0], nil
}

func transactionsForWallet(ctx context.Context, q querier, walletID string, dir Direction) ([]Transaction, error) {
	var where string
	switch dir {
	case DirectionSent:
		where = `from_wallet_id = $1`
	case DirectionReceived:
		where = `to_wallet_id = $1`
	default:
		where = `(from_wallet_id = $1 OR to_wallet_id = $1)`
	}
	rows, err := q.Query(ctx, `SELECT `+txColumns+` FROM transactions WHERE `+where+`
        ORDER BY created_at DESC, seq DESC`, walletID)
	if err != nil {
		return nil, Classify(err)
	}
	return collectTransactions(ctx, q, rows)
}

// collectTransactions scans rows and attaches status history in one extra query.
func collectTransactions(ctx context.Context, q querier, rows pgx.Rows) ([]Transaction, error) {
	out := make([]Transaction, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			t                   Transaction
			amount, fee, netAmt int64
		)
		if err := rows.Scan(&t.ID, &t.Kind, &t.FromWalletID, &t.ToWalletID, &t.DestinationAccountID,
			&t.Reference, &amount, &fee, &netAmt, &t.Note, &t.Status, &t.EstimatedArrival, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, Classify(err)
		}
		t.Amount, t.Fee, t.NetAmount = money.Amount(amount), money.Amount(fee), money.Amount(netAmt)
		t.CreatedAt = t.CreatedAt.UTC()
		index[t.ID] = len(out)
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, Classify(err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, t := range out {
		ids = append(ids, t.ID)
	}
	hrows, err := q.Query(ctx, `SELECT transaction_id, status, description, created_at
        FROM transaction_status_history WHERE transaction_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, Classify(err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var (
			txID  string
			entry StatusEntry
		)
		if err := hrows.Scan(&txID, &entry.Status, &entry.Description, &entry.Timestamp); err != nil {
			return nil, Classify(err)
		}
		entry.Timestamp = entry.Timestamp.UTC()
		i := index[txID]
		out[i].StatusHistory = append(out[i].StatusHistory, entry)
	}
	if err := hrows.Err(); err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

func insertStatus(ctx context.Context, q querier, transactionID string, entry StatusEntry) error {
	_, err := q.Exec(ctx, `INSERT INTO transaction_status_history (transaction_id, status, description, created_at)
        VALUES ($1, $2, $3, $4)`, transactionID, entry.Status, entry.Description, entry.Timestamp)
	if err != nil {
		return Classify(err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Classify maps driver errors onto the ledger taxonomy. Timeouts, lock
// conflicts and unique races are retryable and a dangling reference is bad
// input; anything else is a storage failure.
func Classify(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Conflict(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505":
			return Conflict(err)
		case "23503":
			return &Error{Kind: KindInvalidInput, Detail: "referenced record does not exist", Err: err}
		}
	}
	return Storage(err)
}
