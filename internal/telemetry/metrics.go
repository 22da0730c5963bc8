package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Метрики движка.
var (
	// ExecutionsTotal — количество завершённых executions по статусу.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_executions_total",
		Help: "Completed flow executions by terminal status.",
	}, []string{"status"})

	// ActionsTotal — количество выполненных действий по ключу и исходу.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_actions_total",
		Help: "Dispatched actions by key and outcome.",
	}, []string{"action", "outcome"})

	// ExecutionDuration — длительность executions в секундах.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cascade_execution_duration_seconds",
		Help:    "Flow execution duration in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// EventsConsumed — принятые из очереди события по результату обработки.
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_events_consumed_total",
		Help: "Inbound events consumed from the queue by handling result.",
	}, []string{"result"})
)

// MetricsHandler возвращает HTTP handler для /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
