// Package metrics exposes harvest activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forum_harvester/internal/domain"
)

const namespace = "forum_harvester"

type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	harvests    *prometheus.CounterVec
	newItems    *prometheus.CounterVec
	newSubItems *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	dueSources  prometheus.Gauge
	lastRun     prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_runs_total",
			Help:      "Scheduled runs by outcome.",
		}, []string{"result"}),
		harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_harvests_total",
			Help:      "Per-source harvests by tier, mode and outcome.",
		}, []string{"tier", "mode", "result"}),
		newItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_items_total",
			Help:      "Items inserted for the first time.",
		}, []string{"source"}),
		newSubItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_sub_items_total",
			Help:      "Sub-items inserted for the first time.",
		}, []string{"source"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_harvest_duration_seconds",
			Help:      "Time spent harvesting one source.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		dueSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "due_sources",
			Help:      "Sources found due by the latest scheduled run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the latest scheduled run finished.",
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs,
		r.harvests,
		r.newItems,
		r.newSubItems,
		r.duration,
		r.dueSources,
		r.lastRun,
	)

	return r
}

func (r *Recorder) ObserveSource(res domain.SourceResult) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	r.harvests.WithLabelValues(res.Tier, string(res.Mode), outcome).Inc()
	r.duration.WithLabelValues(string(res.Mode)).Observe(res.Duration.Seconds())
	if res.Success {
		r.newItems.WithLabelValues(res.Source).Add(float64(res.NewItems))
		r.newSubItems.WithLabelValues(res.Source).Add(float64(res.NewSubItems))
	}
}

// ObserveRun records a finished scheduled run. A run counts as failed when
// any of its sources failed.
func (r *Recorder) ObserveRun(due int, totals domain.Totals, finished time.Time) {
	outcome := "success"
	if totals.Failed > 0 {
		outcome = "partial_failure"
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.dueSources.Set(float64(due))
	r.lastRun.Set(float64(finished.Unix()))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
