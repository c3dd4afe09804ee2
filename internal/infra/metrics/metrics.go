package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Количество попыток подачи анкеты по исходу",
	}, []string{"outcome"})

	ProfileViewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profile_views_total",
		Help: "Количество открытых анкет",
	})

	ProfileDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profile_deletions_total",
		Help: "Количество удалений анкет по инициатору",
	}, []string{"actor"})

	ModerationActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Количество действий модерации",
	}, []string{"action"})

	SnapshotErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_errors_total",
		Help: "Ошибки записи снапшота состояния",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SubmissionsTotal,
		ProfileViewsTotal,
		ProfileDeletionsTotal,
		ModerationActionsTotal,
		SnapshotErrorsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, status).Inc()
}

// IncSubmission увеличивает счётчик подач по исходу.
func IncSubmission(outcome string) {
	SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// IncDeletion увеличивает счётчик удалений (actor: owner|admin).
func IncDeletion(actor string) {
	ProfileDeletionsTotal.WithLabelValues(actor).Inc()
}

// IncModeration увеличивает счётчик действий модерации.
func IncModeration(action string) {
	ModerationActionsTotal.WithLabelValues(action).Inc()
}
