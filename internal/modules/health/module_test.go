package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend_bot/internal/modules/health/service"
	"trend_bot/pkg/metrics"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestMux(t *testing.T) {
	state := service.NewState()
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	mux := NewMux(state, reg)

	assert.Equal(t, http.StatusOK, get(t, mux, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/readyz").Code)

	state.SetReady(true)
	state.SetWSConnected(true)
	state.TouchTick(time.Unix(1700000000, 0))
	state.SetActive(3)
	assert.Equal(t, http.StatusOK, get(t, mux, "/readyz").Code)

	res := get(t, mux, "/healthz")
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		Ready         bool  `json:"ready"`
		WSConnected   bool  `json:"wsConnected"`
		LastTickUnix  int64 `json:"lastTickUnix"`
		ActiveSignals int64 `json:"activeSignals"`
	}
	require.NoError(t, sonic.Unmarshal(res.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.True(t, body.WSConnected)
	assert.Equal(t, int64(1700000000), body.LastTickUnix)
	assert.Equal(t, int64(3), body.ActiveSignals)

	rec.SignalCreated("STRONG_BULLISH")
	m := get(t, mux, "/metrics")
	require.Equal(t, http.StatusOK, m.Code)
	assert.Contains(t, m.Body.String(), `trend_bot_signals_created_total{trend="STRONG_BULLISH"} 1`)
}

func TestState_ZeroTick(t *testing.T) {
	s := service.NewState()
	assert.True(t, s.LastTick().IsZero())
	assert.Equal(t, int64(0), unixOrZero(s.LastTick()))
}
