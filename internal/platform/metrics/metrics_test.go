package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcomeIncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveOutcome("verify", "ok")
	c.ObserveOutcome("verify", "ok")
	c.ObserveOutcome("verify", "session_expired")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.outcomes.WithLabelValues("verify", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.outcomes.WithLabelValues("verify", "session_expired")))
}

func TestObserveExchangeRecordsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveExchange("ok", 120*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "chessmate_auth_exchange_duration_seconds" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found, "exchange histogram not registered")
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveOutcome("logout", "ok")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `chessmate_auth_operations_total{kind="ok",operation="logout"} 1`))
}
