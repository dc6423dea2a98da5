// Package metrics exposes enrichment run counters for the Prometheus
// textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "roster"

// Recorder holds the counters of one pipeline. Each Recorder owns its own
// registry so parallel pipelines (and tests) never share state.
type Recorder struct {
	registry *prometheus.Registry

	Calls          prometheus.Counter
	Records        prometheus.Counter
	Matched        prometheus.Counter
	Rejected       prometheus.Counter
	Retries        prometheus.Counter
	MinutePauses   prometheus.Counter
	CallErrors     *prometheus.CounterVec
	DailyRemaining prometheus.Gauge
	Pending        prometheus.Gauge
	LastRunSuccess prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Calls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "match_calls_total",
			Help: "Bulk match calls that returned a success status.",
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_submitted_total",
			Help: "Identity records submitted to the match API.",
		}),
		Matched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_matched_total",
			Help: "Records that came back with a match.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_rejected_total",
			Help: "Records that came back without a match.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "match_retries_total",
			Help: "Retried bulk match calls.",
		}),
		MinutePauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "minute_pauses_total",
			Help: "Pauses taken between minute windows.",
		}),
		CallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "match_call_errors_total",
			Help: "Failed bulk match attempts by kind.",
		}, []string{"kind"}),
		DailyRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "daily_quota_remaining",
			Help: "Last server-reported daily quota remaining (-1 when unknown).",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "records_pending",
			Help: "Records still pending after the last run.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_success",
			Help: "1 if the last run completed without a fatal error.",
		}),
	}
	r.DailyRemaining.Set(-1)
	r.registry.MustRegister(
		r.Calls, r.Records, r.Matched, r.Rejected, r.Retries, r.MinutePauses,
		r.CallErrors, r.DailyRemaining, r.Pending, r.LastRunSuccess,
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the current values in text exposition format. An
// empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return eris.Wrapf(prometheus.WriteToTextfile(path, r.registry), "metrics: write %s", path)
}
