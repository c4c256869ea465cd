package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diffwatch"

// UnknownPhase is the phase label used when the last status tag is not
// recognized.
const UnknownPhase = "UNKNOWN"

var phaseLabels = []string{"SCANNING", "WRITING", "PUBLISHING", UnknownPhase}

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	reg          *prom.Registry
	ingested     *prom.CounterVec
	rejected     *prom.CounterVec
	phase        *prom.GaugeVec
	comparisons  prom.Gauge
	linesWritten prom.Gauge
	reconcile    prom.Histogram
	reconnects   *prom.CounterVec
}

// NewPrometheusRecorder registers the collectors on reg, or on a fresh
// registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		ingested: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Events appended to the session log by phase",
		}, []string{"phase"}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_rejected_total",
			Help:      "Events rejected at the ingestion boundary",
		}, []string{"reason"}),
		phase: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "current_phase",
			Help:      "1 for the phase of the most recent event",
		}, []string{"phase"}),
		comparisons: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "comparisons",
			Help:      "Reconciled before/after comparisons",
		}),
		linesWritten: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "lines_written",
			Help:      "Lines in the after side of all comparisons",
		}),
		reconcile: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time to recompute derived views after an append",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		reconnects: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "source_reconnects_total",
			Help:      "Event source reconnect attempts",
		}, []string{"source"}),
	}
	reg.MustRegister(pr.ingested, pr.rejected, pr.phase, pr.comparisons, pr.linesWritten, pr.reconcile, pr.reconnects)
	return pr
}

// Registry returns the registry the collectors live on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

// Handler serves the recorder's registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusRecorder) IncEventIngested(phase string) {
	p.ingested.WithLabelValues(phase).Inc()
}

func (p *PrometheusRecorder) IncEventRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) SetCurrentPhase(phase string) {
	for _, l := range phaseLabels {
		v := 0.0
		if l == phase {
			v = 1
		}
		p.phase.WithLabelValues(l).Set(v)
	}
}

func (p *PrometheusRecorder) SetComparisons(n int)  { p.comparisons.Set(float64(n)) }
func (p *PrometheusRecorder) SetLinesWritten(n int) { p.linesWritten.Set(float64(n)) }

func (p *PrometheusRecorder) ObserveReconcileDuration(d time.Duration) {
	p.reconcile.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSourceReconnect(source string) {
	p.reconnects.WithLabelValues(source).Inc()
}
