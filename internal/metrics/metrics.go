package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders accepted by the submission endpoint.",
	})

	DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_dispatch_outcomes_total",
		Help: "Dispatch runs by outcome.",
	}, []string{"outcome"})

	AssignmentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restaurant_assignments_created_total",
		Help: "Restaurant assignments offered.",
	})

	AssignmentResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_assignment_responses_total",
		Help: "Restaurant responses by action and result.",
	}, []string{"action", "result"})

	AssignmentsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restaurant_assignments_expired_total",
		Help: "Pending assignments expired by the sweeper.",
	})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"status"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notifications persisted by type.",
	}, []string{"type"})

	ListenerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "status_listener_events_total",
		Help: "Change-feed events by handling result.",
	}, []string{"result"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restaurant_webhook_duration_seconds",
		Help:    "Restaurant webhook delivery time including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
)

// Result maps an error to a label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
