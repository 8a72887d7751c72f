package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/api/v1/coins/spend", "200", 0.02)
	RecordHTTPRequest("POST", "/api/v1/coins/spend", "402", 0.01)
	RecordHTTPRequest("POST", "/api/v1/coins/spend", "200", 0.03)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/coins/spend", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/coins/spend", "402")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordOperation(t *testing.T) {
	LedgerOperationsTotal.Reset()

	RecordOperation("spend", "ok", 0.004)
	RecordOperation("spend", "insufficient_balance", 0.002)
	RecordOperation("credit", "ok", 0.003)

	assert.Equal(t, float64(1), testutil.ToFloat64(LedgerOperationsTotal.WithLabelValues("spend", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LedgerOperationsTotal.WithLabelValues("spend", "insufficient_balance")))
	assert.Equal(t, 3, testutil.CollectAndCount(LedgerOperationsTotal))
}

func TestRecordCoins(t *testing.T) {
	CoinsMovedTotal.Reset()

	RecordCoins("credit", "purchased", 500)
	RecordCoins("credit", "purchased", 100)
	RecordCoins("expired", "", 40)
	RecordCoins("debit", "", 0)

	assert.Equal(t, float64(600), testutil.ToFloat64(CoinsMovedTotal.WithLabelValues("credit", "purchased")))
	assert.Equal(t, float64(40), testutil.ToFloat64(CoinsMovedTotal.WithLabelValues("expired", "")))
	assert.Equal(t, 2, testutil.CollectAndCount(CoinsMovedTotal), "zero amounts are not recorded")
}

func TestRecordJobAndRetry(t *testing.T) {
	JobRunsTotal.Reset()
	JobUsersProcessed.Reset()
	WriteConflictRetriesTotal.Reset()
	NotificationsSentTotal.Reset()

	RecordJobRun("sweep_expired", "ok")
	RecordJobUser("sweep_expired", "processed")
	RecordJobUser("sweep_expired", "processed")
	RecordJobUser("sweep_expired", "failed")
	RecordRetry("spend")
	RecordNotification("coins_expired", "sent")

	assert.Equal(t, float64(1), testutil.ToFloat64(JobRunsTotal.WithLabelValues("sweep_expired", "ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(JobUsersProcessed.WithLabelValues("sweep_expired", "processed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(WriteConflictRetriesTotal.WithLabelValues("spend")))
	assert.Equal(t, float64(1), testutil.ToFloat64(NotificationsSentTotal.WithLabelValues("coins_expired", "sent")))
}
