package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedback-app/internal/dbpool"
)

type staticPool dbpool.Stats

func (s staticPool) Stat() dbpool.Stats { return dbpool.Stats(s) }

func TestRecordSave(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordSave(nil)
	m.RecordSave(nil)
	m.RecordSave(fmt.Errorf("%w: timeout", dbpool.ErrPoolExhausted))
	m.RecordSave(dbpool.ErrPoolClosed)
	m.RecordSave(errors.New("other"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedbackSaves.WithLabelValues(OutcomeStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackSaves.WithLabelValues(OutcomeRetryable)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedbackSaves.WithLabelValues(OutcomeFailed)))
}

func TestPoolCollector(t *testing.T) {
	t.Parallel()

	c := newPoolCollector("FeedbackAppPool", staticPool{
		State:           dbpool.StateReady,
		Total:           5,
		Idle:            3,
		Acquired:        2,
		Max:             10,
		AcquireCount:    42,
		AcquireDuration: 2 * time.Second,
	})
	assert.Equal(t, 10, testutil.CollectAndCount(c))

	expected := `
# HELP feedbackd_db_pool_acquired_connections Connections currently borrowed.
# TYPE feedbackd_db_pool_acquired_connections gauge
feedbackd_db_pool_acquired_connections{pool="FeedbackAppPool"} 2
# HELP feedbackd_db_pool_acquires_total Successful acquires.
# TYPE feedbackd_db_pool_acquires_total counter
feedbackd_db_pool_acquires_total{pool="FeedbackAppPool"} 42
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"feedbackd_db_pool_acquired_connections", "feedbackd_db_pool_acquires_total"))
}

func TestHandlerExposesPoolMetrics(t *testing.T) {
	t.Parallel()

	m := New()
	require.NoError(t, m.RegisterPool("FeedbackAppPool", staticPool{State: dbpool.StateReady, Max: 10}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `feedbackd_db_pool_max_connections{pool="FeedbackAppPool"} 10`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
