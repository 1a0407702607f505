package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.SignalCreated("STRONG_BULLISH")
	r.SignalCreated("STRONG_BULLISH")
	r.Suppressed("low_volume")
	r.Resolved("SL_HIT")
	r.Error("fetch")
	r.Active(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.signalsCreated.WithLabelValues("STRONG_BULLISH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.suppressed.WithLabelValues("low_volume")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resolved.WithLabelValues("SL_HIT")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.activeSignals))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SignalCreated("x")
		r.Suppressed("x")
		r.Resolved("x")
		r.Error("x")
		r.Active(1)
		r.Cycle("x", 1, 1)
	})
}
