package watch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once
	metrics     *watchMetrics
)

type watchMetrics struct {
	iterationsTotal *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	running         *prometheus.GaugeVec
	eventsTotal     *prometheus.CounterVec
}

func getMetrics() *watchMetrics {
	metricsOnce.Do(func() {
		metrics = &watchMetrics{
			iterationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "grrr_watch_iterations_total",
					Help: "Total number of watch loop iterations",
				},
				[]string{"loop", "success"},
			),
			durationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "grrr_watch_iteration_duration_seconds",
					Help: "Duration of watch loop iterations",
				},
				[]string{"loop", "success"},
			),
			running: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "grrr_watch_loop_running",
					Help: "Whether the watch loop is currently running",
				},
				[]string{"loop"},
			),
			eventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "grrr_watch_events_total",
					Help: "Filesystem events seen by the watcher",
				},
				[]string{"op"},
			),
		}
	})
	return metrics
}
