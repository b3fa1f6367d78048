package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation("swap", true, time.Second)
		m.RecordTransition("Acting")
		m.RecordRefresh("reserves", time.Millisecond, nil)
		m.SetReserves(1, 2, 3)
		m.SetLatestBlock(5)
	})
}

func TestMetrics_Record(t *testing.T) {
	m := New("test")
	m.RecordOperation("add_liquidity", true, time.Second)
	m.RecordOperation("add_liquidity", false, time.Second)
	m.RecordRefresh("reserves", time.Millisecond, errors.New("boom"))
	m.SetReserves(10, 2000, 100)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("add_liquidity", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("add_liquidity", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshTotal.WithLabelValues("reserves", "error")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(m.TokenReserve))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("test")
	m.SetLatestBlock(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_chain_latest_block 42")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New("dup")
		_ = New("dup")
	})
}
