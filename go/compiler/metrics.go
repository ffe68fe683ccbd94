package compiler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess      = "success"
	outcomeFailure      = "failure"
	outcomeLaunchFailed = "launch_failed"
)

var (
	metricsOnce sync.Once
	metrics     *compilerMetrics
)

type compilerMetrics struct {
	jobsTotal       *prometheus.CounterVec
	durationSeconds prometheus.Histogram
	running         prometheus.Gauge
}

func getMetrics() *compilerMetrics {
	metricsOnce.Do(func() {
		metrics = &compilerMetrics{
			jobsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "grrr_compile_jobs_total",
					Help: "Total number of compile jobs by outcome",
				},
				[]string{"outcome"},
			),
			durationSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "grrr_compile_duration_seconds",
					Help:    "Duration of compiler processes",
					Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
				},
			),
			running: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "grrr_compile_jobs_running",
					Help: "Number of compiler processes currently running",
				},
			),
		}
	})
	return metrics
}
