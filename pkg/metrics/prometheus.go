package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder - метрики сигналов. Nil-ресивер допустим: ничего не пишет.
type Recorder struct {
	signalsCreated  *prometheus.CounterVec
	suppressed      *prometheus.CounterVec
	resolved        *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	activeSignals   prometheus.Gauge
	lastCycleUnixTs *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signalsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_bot_signals_created_total",
				Help: "Signals written to the store",
			},
			[]string{"trend"},
		),
		suppressed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_bot_signals_suppressed_total",
				Help: "Bars that did not produce a signal",
			},
			[]string{"reason"},
		),
		resolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_bot_signals_resolved_total",
				Help: "Signals moved to a terminal status",
			},
			[]string{"status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trend_bot_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		cycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trend_bot_cycle_duration_seconds",
				Help:    "Duration of analysis and reconcile cycles",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cycle"},
		),
		activeSignals: f.NewGauge(prometheus.GaugeOpts{
			Name: "trend_bot_active_signals",
			Help: "ACTIVE signals seen by the last reconcile cycle",
		}),
		lastCycleUnixTs: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trend_bot_last_cycle_timestamp_seconds",
				Help: "Unix time of the last finished cycle",
			},
			[]string{"cycle"},
		),
	}
}

func (r *Recorder) SignalCreated(trend string) {
	if r == nil {
		return
	}
	r.signalsCreated.WithLabelValues(trend).Inc()
}

func (r *Recorder) Suppressed(reason string) {
	if r == nil {
		return
	}
	r.suppressed.WithLabelValues(reason).Inc()
}

func (r *Recorder) Resolved(status string) {
	if r == nil {
		return
	}
	r.resolved.WithLabelValues(status).Inc()
}

func (r *Recorder) Error(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) Active(n int) {
	if r == nil {
		return
	}
	r.activeSignals.Set(float64(n))
}

// Cycle пишет длительность и время окончания цикла.
func (r *Recorder) Cycle(name string, seconds float64, finishedUnix int64) {
	if r == nil {
		return
	}
	r.cycleDuration.WithLabelValues(name).Observe(seconds)
	r.lastCycleUnixTs.WithLabelValues(name).Set(float64(finishedUnix))
}
