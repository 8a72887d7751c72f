package ledger

import (
	"testing"
	"time"

	"coin-ledger/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_ThenSweepAndDebit(t *testing.T) {
	e, clock := newTestEngine(t)
	s := credit(t, e, domain.NewBalanceState("u1"), 10, domain.SourceEarned, clock.Now().Add(time.Hour))
	s = credit(t, e, s, 50, domain.SourcePurchased, clock.Now().Add(year))
	clock.Advance(2 * time.Hour)

	swept := e.Sweep(s, clock.Now())
	debited, err := e.Debit(swept.State, 20, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)

	combined := swept.Result.Then(debited)

	assert.Equal(t, int64(30), combined.State.TotalBalance)
	require.Len(t, combined.Records, 2)
	assert.Equal(t, domain.ReasonExpired, combined.Records[0].Reason.Kind)
	assert.Equal(t, int64(50), combined.Records[0].BalanceAfter)
	assert.Equal(t, domain.ReasonSpend, combined.Record().Reason.Kind)
	assert.Equal(t, []string{"b001"}, combined.Changes.Deleted)
	require.Len(t, combined.Changes.Updated, 1)
	assert.Equal(t, "b002", combined.Changes.Updated[0].ID)
}

func TestResult_ThenFoldsUpdatesIntoInsert(t *testing.T) {
	e, clock := newTestEngine(t)
	credited, err := e.Credit(domain.NewBalanceState("u1"), CreditInput{
		Amount: 10, Source: domain.SourceEarned, ExpiresAt: clock.Now().Add(year),
	})
	require.NoError(t, err)
	debited, err := e.Debit(credited.State, 4, domain.Reason{Kind: domain.ReasonSpend})
	require.NoError(t, err)

	combined := credited.Then(debited)

	require.Len(t, combined.Changes.Inserted, 1)
	assert.Equal(t, int64(6), combined.Changes.Inserted[0].RemainingAmount)
	assert.Empty(t, combined.Changes.Updated)
}

func TestResult_ThenDropsUpdatesOfDeletedBatches(t *testing.T) {
	first := Result{Changes: Changes{Updated: []domain.CoinBatch{{ID: "x"}, {ID: "y"}}}}
	second := Result{Changes: Changes{Deleted: []string{"x"}}}

	combined := first.Then(second)

	assert.Equal(t, []string{"x"}, combined.Changes.Deleted)
	require.Len(t, combined.Changes.Updated, 1)
	assert.Equal(t, "y", combined.Changes.Updated[0].ID)
}

func TestResult_EmptyIsUnchanged(t *testing.T) {
	assert.False(t, Result{}.Changed())
	assert.Nil(t, Result{}.Record())
	assert.True(t, Result{Changes: Changes{Deleted: []string{"a"}}}.Changed())
}
