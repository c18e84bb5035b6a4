package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry — выделенный реестр обоих сервисов.
	Registry = prometheus.NewRegistry()

	// LegTransitions считает переходы по стейт-машине плеча (assign/start/finish/reassign).
	LegTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "leg_transitions_total", Help: "Leg state transitions by action."},
		[]string{"action"},
	)

	// QueueConflicts считает отказы операций ТС из-за занятой очереди или перевозчика.
	QueueConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "vehicle_queue_conflicts_total", Help: "Rejected vehicle operations due to queue or carrier conflicts."},
	)

	// CrossServiceFailures считает неудавшиеся вызовы смежного сервиса.
	CrossServiceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cross_service_failures_total", Help: "Failed calls to the peer service by target."},
		[]string{"target"},
	)

	// ReconcileNeeded считает обнаруженные расхождения между планировщиком и парком.
	ReconcileNeeded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "reconcile_needed_total", Help: "Detected planner/fleet state divergences."},
	)

	// EventsPublished считает опубликованные доменные события по типу.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "events_published_total", Help: "Published domain events by type."},
		[]string{"type"},
	)
)

var regOnce sync.Once

// Register регистрирует коллекторы в Registry. Повторные вызовы безопасны.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(LegTransitions)
		Registry.MustRegister(QueueConflicts)
		Registry.MustRegister(CrossServiceFailures)
		Registry.MustRegister(ReconcileNeeded)
		Registry.MustRegister(EventsPublished)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
