package service

import (
	"cmp"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"coin-ledger/internal/core/domain"
	"coin-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func noSleep(context.Context, time.Duration) error { return nil }

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// --- In-Memory Ledger Store ---

// memStore is an in-memory stand-in for the Postgres repositories. Writes are
// staged on a memTx and applied on Commit, with the same optimistic version
// check and unique idempotency key the database enforces.
type memStore struct {
	mu      sync.Mutex
	states  map[string]domain.BalanceState
	records []domain.TransactionRecord
	keys    map[string]domain.IdempotencyRecord
}

var (
	_ ports.BalanceRepository     = (*memStore)(nil)
	_ ports.BatchRepository       = (*memStore)(nil)
	_ ports.TransactionRepository = (*memStore)(nil)
	_ ports.IdempotencyRepository = memKeys{}
	_ ports.DBTransactor          = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		states: make(map[string]domain.BalanceState),
		keys:   make(map[string]domain.IdempotencyRecord),
	}
}

type memTx struct {
	pgx.Tx
	store *memStore

	header   *domain.BalanceState
	inserted []domain.CoinBatch
	updated  []domain.CoinBatch
	deleted  []string
	records  []domain.TransactionRecord
	keys     []domain.IdempotencyRecord
	done     bool
}

func (t *memTx) Rollback(_ context.Context) error {
	t.done = true
	return nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return errors.New("tx already closed")
	}
	t.done = true
	if t.header == nil {
		return nil
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.states[t.header.UserID]
	if cur.Version != t.header.Version {
		return domain.ErrWriteConflict
	}
	for _, k := range t.keys {
		if _, exists := s.keys[k.Key]; exists {
			return domain.ErrWriteConflict
		}
	}

	batches := slices.Clone(cur.Batches)
	batches = append(batches, t.inserted...)
	for _, u := range t.updated {
		i := slices.IndexFunc(batches, func(b domain.CoinBatch) bool { return b.ID == u.ID })
		if i < 0 {
			return errors.New("update of unknown batch " + u.ID)
		}
		batches[i].RemainingAmount = u.RemainingAmount
	}
	batches = slices.DeleteFunc(batches, func(b domain.CoinBatch) bool {
		return slices.Contains(t.deleted, b.ID)
	})

	next := domain.BalanceState{
		UserID:       t.header.UserID,
		Batches:      batches,
		TotalBalance: t.header.TotalBalance,
		LastUpdated:  t.header.LastUpdated,
		Version:      cur.Version + 1,
	}
	if !next.Reconciles() {
		return errors.New("batch rows do not reconcile with the balance header")
	}

	s.states[next.UserID] = next
	s.records = append(s.records, t.records...)
	for _, k := range t.keys {
		s.keys[k.Key] = k
	}
	return nil
}

func (s *memStore) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) Load(_ context.Context, _ pgx.Tx, userID string) (domain.BalanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		return domain.NewBalanceState(userID), nil
	}
	return st.Clone(), nil
}

func (s *memStore) Get(_ context.Context, userID string) (*domain.BalanceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	cp := st.Clone()
	return &cp, nil
}

func (s *memStore) Save(_ context.Context, tx pgx.Tx, state domain.BalanceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[state.UserID].Version != state.Version {
		return domain.ErrWriteConflict
	}
	cp := state.Clone()
	tx.(*memTx).header = &cp
	return nil
}

func (s *memStore) Insert(_ context.Context, tx pgx.Tx, _ string, batches []domain.CoinBatch) error {
	t := tx.(*memTx)
	t.inserted = append(t.inserted, batches...)
	return nil
}

func (s *memStore) UpdateRemaining(_ context.Context, tx pgx.Tx, batches []domain.CoinBatch) error {
	t := tx.(*memTx)
	t.updated = append(t.updated, batches...)
	return nil
}

func (s *memStore) Delete(_ context.Context, tx pgx.Tx, _ string, ids []string) error {
	t := tx.(*memTx)
	t.deleted = append(t.deleted, ids...)
	return nil
}

func (s *memStore) ListUserIDsExpiring(_ context.Context, from, to time.Time, after string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, st := range s.states {
		if id <= after {
			continue
		}
		if slices.ContainsFunc(st.Batches, func(b domain.CoinBatch) bool {
			return b.ExpiresAt.After(from) && !b.ExpiresAt.After(to)
		}) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) Record(_ context.Context, tx pgx.Tx, rec *domain.TransactionRecord) error {
	t := tx.(*memTx)
	t.records = append(t.records, *rec)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByIdempotencyKey(_ context.Context, key string) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].Key() == key {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByUser(_ context.Context, params ports.TransactionListParams) ([]domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TransactionRecord
	for _, rec := range s.records {
		if rec.UserID != params.UserID {
			continue
		}
		if params.Direction != nil && rec.Direction != *params.Direction {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.TransactionRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	if c := params.Before; c != nil {
		out = slices.DeleteFunc(out, func(rec domain.TransactionRecord) bool {
			if rec.Timestamp.Equal(c.Timestamp) {
				return rec.ID.String() >= c.ID.String()
			}
			return rec.Timestamp.After(c.Timestamp)
		})
	}
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

// memKeys is the idempotency_keys table of a memStore.
type memKeys struct{ s *memStore }

func (k memKeys) Reserve(_ context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) (bool, error) {
	k.s.mu.Lock()
	_, exists := k.s.keys[rec.Key]
	k.s.mu.Unlock()
	if exists {
		return false, nil
	}
	t := tx.(*memTx)
	t.keys = append(t.keys, *rec)
	return true, nil
}

func (k memKeys) Get(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	rec, ok := k.s.keys[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// seed commits state directly, bypassing the ledger.
func (s *memStore) seed(state domain.BalanceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Version = s.states[state.UserID].Version + 1
	state.TotalBalance = state.SumRemaining()
	s.states[state.UserID] = state
}

// --- Recording Notifier ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.NotificationKind
	for _, note := range n.sent {
		out = append(out, note.Kind)
	}
	return out
}
