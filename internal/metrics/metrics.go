// Package metrics exposes Prometheus metrics about sync runs.
package metrics

import (
	"net/http"

	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pimsync"

// Run results reported in the result label of pimsync_runs_total.
const (
	ResultOK        = "ok"
	ResultPartial   = "partial"
	ResultCancelled = "cancelled"
	ResultError     = "error"
)

// SyncMetrics records the outcome of every sync run in its own registry.
type SyncMetrics struct {
	registry *prometheus.Registry

	items    *prometheus.CounterVec
	failures *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSyncMetrics creates the collectors and registers them, together with
// the Go runtime and process collectors, in a fresh registry.
func NewSyncMetrics() *SyncMetrics {
	m := &SyncMetrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items written or deferred, by pair and action.",
		}, []string{"pair", "action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Items that could not be synchronized, by pair and reason.",
		}, []string{"pair", "reason"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished sync runs, by pair and result.",
		}, []string{"pair", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"pair"}),
	}

	m.registry.MustRegister(
		m.items,
		m.failures,
		m.runs,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun records summary. err is the fatal error of the run, if any.
func (m *SyncMetrics) ObserveRun(summary models.RunSummary, err error) {
	pair := summary.PairID
	m.runs.WithLabelValues(pair, runResult(summary, err)).Inc()

	if !summary.StartedAt.IsZero() && summary.FinishedAt.After(summary.StartedAt) {
		m.duration.WithLabelValues(pair).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}

	add := func(a models.Action, n int) {
		if n > 0 {
			m.items.WithLabelValues(pair, a.String()).Add(float64(n))
		}
	}
	add(models.CreateOnA, summary.CreatedA)
	add(models.CreateOnB, summary.CreatedB)
	add(models.UpdateAFromB, summary.UpdatedA)
	add(models.UpdateBFromA, summary.UpdatedB)
	add(models.DeleteOnA, summary.DeletedA)
	add(models.DeleteOnB, summary.DeletedB)
	add(models.Conflict, summary.ConflictsDeferred)

	for _, f := range summary.Failed {
		m.failures.WithLabelValues(pair, string(f.Reason)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the registry the collectors are registered in.
func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func runResult(summary models.RunSummary, err error) string {
	switch {
	case err != nil:
		return ResultError
	case summary.Cancelled:
		return ResultCancelled
	case len(summary.Failed) > 0:
		return ResultPartial
	default:
		return ResultOK
	}
}
