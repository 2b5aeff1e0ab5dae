package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/lumen-wallet/lumen_wallet/internal/money"
)

type inMemoryStore struct {
	// mu guards wallets and the log; commits hold it exclusively so readers
	// never see a balance change without its transaction or vice versa.
	mu      sync.RWMutex
	wallets map[string]Wallet
	log     []Transaction
	byID    map[string]int
	byRef   map[string]int

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	// failCommit is consumed by the next commit; set through InjectCommitFailure.
	failCommit error
}

// NewInMemory creates a concurrency-safe in-memory store useful for tests and
// local development.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets: make(map[string]Wallet),
		byID:    make(map[string]int),
		byRef:   make(map[string]int),
		locks:   make(map[string]chan struct{}),
	}
}

func (s *inMemoryStore) CreateWallet(_ context.Context, w Wallet) (Wallet, error) {
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
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return Wallet{}, Errorf(KindInvalidInput, "wallet %s already exists", w.ID)
	}
	s.wallets[w.ID] = w
	return w, nil
}

func (s *inMemoryStore) Wallet(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, WalletNotFound(id)
	}
	return w, nil
}

func (s *inMemoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Transaction{}, Errorf(KindNotFound, "transaction %s not found", id)
	}
	return cloneTransaction(s.log[idx]), nil
}

func (s *inMemoryStore) TransactionByReference(_ context.Context, kind, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byRef[kind+":"+reference]
	if !ok {
		return Transaction{}, Errorf(KindNotFound, "no %s with reference %s", kind, reference)
	}
	return cloneTransaction(s.log[idx]), nil
}

func (s *inMemoryStore) Transactions(_ context.Context, walletID string, dir Direction) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, 0)
	for i := len(s.log) - 1; i >= 0; i-- {
		if matches(s.log[i], walletID, dir) {
			out = append(out, cloneTransaction(s.log[i]))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *inMemoryStore) Recent(_ context.Context, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, 0, min(limit, len(s.log)))
	for i := len(s.log) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneTransaction(s.log[i]))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *inMemoryStore) Wallets(_ context.Context, limit int) ([]Wallet, error) {
	s.mu.RLock()
	out := make([]Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *inMemoryStore) Atomically(ctx context.Context, walletIDs []string, fn func(Tx) error) error {
	ids := s.existing(lockOrder(walletIDs))
	release, err := s.acquire(ctx, ids)
	if err != nil {
		return err
	}
	defer release()

	tx := &memTx{
		store:    s,
		locked:   make(map[string]struct{}, len(ids)),
		balances: make(map[string]money.Amount),
		statuses: make(map[string][]StatusEntry),
	}
	for _, id := range ids {
		tx.locked[id] = struct{}{}
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(ctx, tx)
}

func (s *inMemoryStore) acquire(ctx context.Context, ids []string) (func(), error) {
	held := make([]chan struct{}, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, id := range ids {
		ch := s.lockFor(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, Conflict(ctx.Err())
		}
	}
	return release, nil
}

// existing drops ids without a wallet. Wallets are never deleted, so the
// lock table stays bounded by the number of wallets.
func (s *inMemoryStore) existing(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := ids[:0]
	for _, id := range ids {
		if _, ok := s.wallets[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *inMemoryStore) lockFor(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *inMemoryStore) commit(ctx context.Context, tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failCommit; err != nil {
		s.failCommit = nil
		return Storage(err)
	}
	if err := ctx.Err(); err != nil {
		return Conflict(err)
	}
	for _, t := range tx.appended {
		if _, dup := s.byID[t.ID]; dup {
			return Conflict(fmt.Errorf("transaction id %s already recorded", t.ID))
		}
		if t.Reference != "" {
			if _, dup := s.byRef[t.Kind+":"+t.Reference]; dup {
				return Conflict(fmt.Errorf("reference %s already recorded", t.Reference))
			}
		}
	}

	for id, balance := range tx.balances {
		w := s.wallets[id]
		w.Balance = balance
		s.wallets[id] = w
	}
	for _, t := range tx.appended {
		s.byID[t.ID] = len(s.log)
		if t.Reference != "" {
			s.byRef[t.Kind+":"+t.Reference] = len(s.log)
		}
		s.log = append(s.log, t)
	}
	for id, entries := range tx.statuses {
		idx := s.byID[id]
		rec := s.log[idx]
		rec.StatusHistory = append(slices.Clip(rec.StatusHistory), entries...)
		rec.Status = entries[len(entries)-1].Status
		s.log[idx] = rec
	}
	return nil
}

type memTx struct {
	store    *inMemoryStore
	locked   map[string]struct{}
	balances map[string]money.Amount
	appended []Transaction
	statuses map[string][]StatusEntry
}

func (t *memTx) Wallet(ctx context.Context, id string) (Wallet, error) {
	w, err := t.store.Wallet(ctx, id)
	if err != nil {
		return Wallet{}, err
	}
	if b, ok := t.balances[id]; ok {
		w.Balance = b
	}
	return w, nil
}

func (t *memTx) ApplyDelta(ctx context.Context, walletID string, delta money.Amount) (money.Amount, error) {
	w, err := t.Wallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	if _, ok := t.locked[walletID]; !ok {
		// Created after the unit took its locks, or never named by the caller.
		return 0, Conflict(fmt.Errorf("wallet %s is not locked by this unit", walletID))
	}
	next := w.Balance + delta
	if next < 0 {
		return 0, InsufficientBalance(w.Balance, -delta)
	}
	t.balances[walletID] = next
	return next, nil
}

func (t *memTx) Append(_ context.Context, rec Transaction) (string, error) {
	rec = prepareAppend(rec)
	t.appended = append(t.appended, rec)
	return rec.ID, nil
}

func (t *memTx) AppendStatus(ctx context.Context, transactionID string, entry StatusEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	for i := range t.appended {
		if t.appended[i].ID == transactionID {
			t.appended[i].StatusHistory = append(t.appended[i].StatusHistory, entry)
			t.appended[i].Status = entry.Status
			return nil
		}
	}
	if _, err := t.store.Transaction(ctx, transactionID); err != nil {
		return err
	}
	t.statuses[transactionID] = append(t.statuses[transactionID], entry)
	return nil
}

func (t *memTx) Transaction(ctx context.Context, id string) (Transaction, error) {
	for _, rec := range t.appended {
		if rec.ID == id {
			return cloneTransaction(rec), nil
		}
	}
	rec, err := t.store.Transaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	return t.overlay(rec), nil
}

func (t *memTx) TransactionByReference(ctx context.Context, kind, reference string) (Transaction, error) {
	for _, rec := range t.appended {
		if rec.Kind == kind && rec.Reference == reference {
			return cloneTransaction(rec), nil
		}
	}
	rec, err := t.store.TransactionByReference(ctx, kind, reference)
	if err != nil {
		return Transaction{}, err
	}
	return t.overlay(rec), nil
}

func (t *memTx) Transactions(ctx context.Context, walletID string, dir Direction) ([]Transaction, error) {
	committed, err := t.store.Transactions(ctx, walletID, dir)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(committed)+len(t.appended))
	for i := len(t.appended) - 1; i >= 0; i-- {
		if matches(t.appended[i], walletID, dir) {
			out = append(out, cloneTransaction(t.appended[i]))
		}
	}
	for _, rec := range committed {
		out = append(out, t.overlay(rec))
	}
	sortNewestFirst(out)
	return out, nil
}

func (t *memTx) overlay(rec Transaction) Transaction {
	if entries, ok := t.statuses[rec.ID]; ok {
		rec.StatusHistory = append(rec.StatusHistory, entries...)
		rec.Status = entries[len(entries)-1].Status
	}
	return rec
}

func prepareAppend(rec Transaction) Transaction {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if len(rec.StatusHistory) == 0 && rec.Status != "" {
		rec.StatusHistory = []StatusEntry{{Status: rec.Status, Timestamp: rec.CreatedAt}}
	}
	if n := len(rec.StatusHistory); n > 0 {
		rec.Status = rec.StatusHistory[n-1].Status
	}
	rec.StatusHistory = slices.Clone(rec.StatusHistory)
	return rec
}

func matches(t Transaction, walletID string, dir Direction) bool {
	switch dir {
	case DirectionSent:
		return t.FromWalletID == walletID
	case DirectionReceived:
		return t.ToWalletID == walletID
	default:
		return t.Involves(walletID)
	}
}

// sortNewestFirst orders by CreatedAt descending. Input is expected in
// reverse insertion order so the stable sort keeps later inserts first on ties.
func sortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}

func lockOrder(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func cloneTransaction(t Transaction) Transaction {
	t.StatusHistory = slices.Clone(t.StatusHistory)
	return t
}
