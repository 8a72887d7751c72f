package ledger

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"coin-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

const year = 365 * 24 * time.Hour

// testClock is a manually advanced clock.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	seq := 0
	e := NewEngine(
		WithClock(clock.Now),
		WithIDs(func() string {
			seq++
			return fmt.Sprintf("b%03d", seq)
		}, uuid.New),
	)
	return e, clock
}

func credit(t *testing.T, e *Engine, s domain.BalanceState, amount int64, src domain.Source, expiresAt time.Time) domain.BalanceState {
	t.Helper()
	res, err := e.Credit(s, CreditInput{
		Amount:    amount,
		Source:    src,
		Reason:    domain.Reason{Kind: domain.ReasonPurchase},
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
	return res.State
}

func TestCredit_Success(t *testing.T) {
	e, clock := newTestEngine(t)
	empty := domain.NewBalanceState("u1")

	res, err := e.Credit(empty, CreditInput{
		Amount:         100,
		Source:         domain.SourcePurchased,
		Reason:         domain.Reason{Kind: domain.ReasonPurchase, Detail: "starter"},
		ExpiresAt:      clock.Now().Add(year),
		IdempotencyKey: "purchase:tok-1",
		Metadata:       map[string]string{"platform": "ios"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100), res.State.TotalBalance)
	require.Len(t, res.State.Batches, 1)
	b := res.State.Batches[0]
	assert.Equal(t, "b001", b.ID)
	assert.Equal(t, int64(100), b.OriginalAmount)
	assert.Equal(t, int64(100), b.RemainingAmount)
	assert.Equal(t, t0, b.CreatedAt)
	assert.Equal(t, t0, res.State.LastUpdated)

	rec := res.Record()
	require.NotNil(t, rec)
	assert.Equal(t, domain.DirectionCredit, rec.Direction)
	assert.Equal(t, domain.SourcePurchased, rec.Source)
	assert.Equal(t, int64(100), rec.BalanceAfter)
	assert.Equal(t, "b001", rec.BatchID)
	assert.Equal(t, "purchase:tok-1", rec.Key())
	assert.Equal(t, "ios", rec.Metadata["platform"])

	assert.Equal(t, []domain.CoinBatch{b}, res.Changes.Inserted)
	assert.Empty(t, empty.Batches, "input state must not be modified")
}

func TestCredit_NoIdempotencyKey(t *testing.T) {
	e, clock := newTestEngine(t)

	res, err := e.Credit(domain.NewBalanceState("u1"), CreditInput{
		Amount: 5, Source: domain.SourceEarned, ExpiresAt: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, res.Record().IdempotencyKey)
}

func TestCredit_Validation(t *testing.T) {
	e, clock := newTestEngine(t)
	state := credit(t, e, domain.NewBalanceState("u1"), 10, domain.SourceEarned, clock.Now().Add(year))

	tests := []struct {
		name    string
		in      CreditInput
		wantErr error
	}{
		{"zero amount", CreditInput{Amount: 0, Source: domain.SourceEarned, ExpiresAt: t0.Add(year)}, domain.ErrInvalidAmount},
		{"negative amount", CreditInput{Amount: -5, Source: domain.SourceEarned, ExpiresAt: t0.Add(year)}, domain.ErrInvalidAmount},
		{"unknown source", CreditInput{Amount: 5, Source: "promo", ExpiresAt: t0.Add(year)}, domain.ErrInvalidSource},
		{"expires now", CreditInput{Amount: 5, Source: domain.SourceEarned, ExpiresAt: t0}, domain.ErrInvalidExpiration},
		{"backdated", CreditInput{Amount: 5, Source: domain.SourceEarned, ExpiresAt: t0.Add(-time.Hour)}, domain.ErrInvalidExpiration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Credit(state, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, state, res.State)
			assert.Nil(t, res.Record())
		})
	}
}

func TestCredit_ComparesAtStorePrecision(t *testing.T) {
	e, clock := newTestEngine(t)
	clock.now = t0.Add(1500 * time.Nanosecond)

	_, err := e.Credit(domain.NewBalanceState("u1"), CreditInput{
		Amount:    5,
		Source:    domain.SourceEarned,
		ExpiresAt: t0.Add(1900 * time.Nanosecond),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidExpiration)

	res, err := e.Credit(domain.NewBalanceState("u1"), CreditInput{
		Amount:    5,
		Source:    domain.SourceEarned,
		ExpiresAt: t0.Add(2100 * time.Nanosecond),
	})
	require.NoError(t, err)
	batch := res.State.Batches[0]
	assert.Equal(t, t0.Add(time.Microsecond), batch.CreatedAt)
	assert.Equal(t, t0.Add(2*time.Microsecond), batch.ExpiresAt)
	assert.True(t, batch.ExpiresAt.After(batch.CreatedAt))
	assert.Equal(t, batch.CreatedAt, res.Record().Timestamp)
}

func TestCredit_VariableExpiry(t *testing.T) {
	e, clock := newTestEngine(t)

	promo := clock.Now().Add(7 * 24 * time.Hour)
	res, err := e.Credit(domain.NewBalanceState("u1"), CreditInput{
		Amount: 20, Source: domain.SourceGifted, ExpiresAt: promo,
	})
	require.NoError(t, err)
	assert.Equal(t, promo, res.State.Batches[0].ExpiresAt)
}

func TestDebit_FIFOByExpiration(t *testing.T) {
	e, clock := newTestEngine(t)
	s := domain.NewBalanceState("u1")
	// Later-expiring batch is created first so creation order cannot explain the result.
	s = credit(t, e, s, 10, domain.SourcePurchased, clock.Now().Add(30*24*time.Hour))
	s = credit(t, e, s, 10, domain.SourceEarned, clock.Now().Add(24*time.Hour))

	res, err := e.Debit(s, 15, domain.Reason{Kind: domain.ReasonSpend, Detail: "superLike"})
	require.NoError(t, err)

	soon, _ := res.State.FindBatch("b002")
	late, _ := res.State.FindBatch("b001")
	assert.Equal(t, int64(0), soon.RemainingAmount)
	assert.Equal(t, int64(5), late.RemainingAmount)
	assert.Equal(t, int64(5), res.State.TotalBalance)

	rec := res.Record()
	assert.Equal(t, domain.DirectionDebit, rec.Direction)
	assert.Equal(t, int64(5), rec.BalanceAfter)
	assert.Equal(t, "spend:superLike", rec.Reason.String())
	assert.Equal(t, []domain.Consumption{{BatchID: "b002", Amount: 10}, {BatchID: "b001", Amount: 5}}, rec.Consumed)
	assert.Len(t, res.Changes.Updated, 2)
}

func TestDebit_TieBreaks(t *testing.T) {
	expiry := t0.Add(year)
	s := domain.BalanceState{
		UserID: "u1",
		Batches: []domain.CoinBatch{
			{ID: "z", OriginalAmount: 5, RemainingAmount: 5, CreatedAt: t0, ExpiresAt: expiry},
			{ID: "late", OriginalAmount: 5, RemainingAmount: 5, CreatedAt: t0.Add(time.Minute), ExpiresAt: expiry},
			{ID: "a", OriginalAmount: 5, RemainingAmount: 5, CreatedAt: t0, ExpiresAt: expiry},
		},
		TotalBalance: 15,
	}
	e, _ := newTestEngine(t)

	res, err := e.Debit(s, 7, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)

	assert.Equal(t, []domain.Consumption{{BatchID: "a", Amount: 5}, {BatchID: "z", Amount: 2}}, res.Record().Consumed)
	late, _ := res.State.FindBatch("late")
	assert.Equal(t, int64(5), late.RemainingAmount)
}

func TestDebit_SkipsExhaustedBatches(t *testing.T) {
	s := domain.BalanceState{
		UserID: "u1",
		Batches: []domain.CoinBatch{
			{ID: "done", OriginalAmount: 5, RemainingAmount: 0, CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)},
			{ID: "live", OriginalAmount: 5, RemainingAmount: 5, CreatedAt: t0, ExpiresAt: t0.Add(year)},
		},
		TotalBalance: 5,
	}
	e, _ := newTestEngine(t)

	res, err := e.Debit(s, 3, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)
	assert.Equal(t, []domain.Consumption{{BatchID: "live", Amount: 3}}, res.Record().Consumed)
	require.Len(t, res.Changes.Updated, 1)
	assert.Equal(t, "live", res.Changes.Updated[0].ID)
}

func TestDebit_InsufficientBalanceLeavesStateUntouched(t *testing.T) {
	e, clock := newTestEngine(t)
	s := credit(t, e, domain.NewBalanceState("u1"), 10, domain.SourcePurchased, clock.Now().Add(year))
	s = credit(t, e, s, 5, domain.SourceEarned, clock.Now().Add(24*time.Hour))
	before := s.Clone()

	res, err := e.Debit(s, 16, domain.Reason{Kind: domain.ReasonSpend})

	var ibe *domain.InsufficientBalanceError
	require.True(t, errors.As(err, &ibe))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, int64(15), ibe.Available)
	assert.Equal(t, int64(16), ibe.Requested)
	assert.Equal(t, before, res.State)
	assert.Equal(t, before, s)
	assert.False(t, res.Changed())
}

func TestDebit_InvalidAmount(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, amount := range []int64{0, -1} {
		_, err := e.Debit(domain.NewBalanceState("u1"), amount, domain.Reason{Kind: domain.ReasonSpend})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
}

func TestDebit_DoesNotAliasInput(t *testing.T) {
	e, clock := newTestEngine(t)
	s := credit(t, e, domain.NewBalanceState("u1"), 10, domain.SourcePurchased, clock.Now().Add(year))

	_, err := e.Debit(s, 4, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)

	assert.Equal(t, int64(10), s.Batches[0].RemainingAmount)
	assert.Equal(t, int64(10), s.TotalBalance)
}

func TestCreditThenDebit_RoundTrip(t *testing.T) {
	e, clock := newTestEngine(t)
	s := credit(t, e, domain.NewBalanceState("u1"), 40, domain.SourceEarned, clock.Now().Add(year))
	pre := s.TotalBalance

	credited, err := e.Credit(s, CreditInput{Amount: 25, Source: domain.SourceGifted, ExpiresAt: clock.Now().Add(24 * time.Hour)})
	require.NoError(t, err)
	debited, err := e.Debit(credited.State, 25, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)

	assert.Equal(t, pre, debited.State.TotalBalance)
	b, ok := debited.State.FindBatch(credited.Record().BatchID)
	require.True(t, ok)
	assert.Equal(t, int64(0), b.RemainingAmount)
}

func TestScenario_PurchaseEarnSpend(t *testing.T) {
	e, clock := newTestEngine(t)
	s := domain.NewBalanceState("u1")

	s = credit(t, e, s, 100, domain.SourcePurchased, clock.Now().Add(year))
	assert.Equal(t, int64(100), s.TotalBalance)
	assert.Len(t, s.Batches, 1)

	clock.Advance(time.Minute)
	s = credit(t, e, s, 50, domain.SourceEarned, clock.Now().Add(year))
	assert.Equal(t, int64(150), s.TotalBalance)
	assert.Len(t, s.Batches, 2)

	res, err := e.Debit(s, 120, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)

	purchased, _ := res.State.FindBatch("b001")
	earned, _ := res.State.FindBatch("b002")
	assert.Equal(t, int64(30), res.State.TotalBalance)
	assert.Equal(t, int64(0), purchased.RemainingAmount)
	assert.Equal(t, int64(30), earned.RemainingAmount)
}

func TestRandomOperations_PreserveInvariants(t *testing.T) {
	e, clock := newTestEngine(t)
	rng := rand.New(rand.NewPCG(42, 7))
	s := domain.NewBalanceState("u1")
	sources := []domain.Source{domain.SourcePurchased, domain.SourceEarned, domain.SourceGifted, domain.SourceAllowance, domain.SourceRefund}

	for i := 0; i < 2000; i++ {
		clock.Advance(time.Duration(rng.IntN(72)) * time.Hour)
		switch rng.IntN(4) {
		case 0, 1:
			res, err := e.Credit(s, CreditInput{
				Amount:    int64(rng.IntN(200) + 1),
				Source:    sources[rng.IntN(len(sources))],
				Reason:    domain.Reason{Kind: domain.ReasonReward},
				ExpiresAt: clock.Now().Add(time.Duration(rng.IntN(400)+1) * 24 * time.Hour),
			})
			require.NoError(t, err)
			s = res.State
		case 2:
			before := s.Clone()
			res, err := e.Debit(s, int64(rng.IntN(300)+1), domain.Reason{Kind: domain.ReasonSpend})
			if err != nil {
				require.ErrorIs(t, err, domain.ErrInsufficientBalance)
				require.Equal(t, before, res.State)
			} else {
				require.Equal(t, res.State.TotalBalance, res.Record().BalanceAfter)
			}
			s = res.State
		case 3:
			swept := e.Sweep(s, clock.Now())
			s = Prune(swept.State, clock.Now()).State
		}

		require.True(t, s.Reconciles(), "step %d: total %d, sum %d", i, s.TotalBalance, s.SumRemaining())
		for _, b := range s.Batches {
			require.GreaterOrEqual(t, b.RemainingAmount, int64(0))
			require.LessOrEqual(t, b.RemainingAmount, b.OriginalAmount)
		}
	}
}
