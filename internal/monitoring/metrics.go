package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkInOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_scans_total",
			Help: "Check-in scan results by outcome",
		},
		[]string{"outcome"},
	)

	undoOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_undo_total",
			Help: "Undo check-in operations, split by whether state changed",
		},
		[]string{"applied"},
	)

	reconcileTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_total",
			Help: "Payment reconciliation calls by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets minted (excludes idempotent re-issues)",
		},
	)
)

// RecordCheckIn counts one scan result.
func RecordCheckIn(outcome string) {
	checkInOutcomes.WithLabelValues(outcome).Inc()
}

// RecordUndo counts one undo request.
func RecordUndo(applied bool) {
	label := "false"
	if applied {
		label = "true"
	}
	undoOperations.WithLabelValues(label).Inc()
}

// RecordReconcile counts one reconciliation call.
func RecordReconcile(trigger, outcome string) {
	reconcileTransitions.WithLabelValues(trigger, outcome).Inc()
}

// RecordTicketIssued counts one freshly minted ticket.
func RecordTicketIssued() {
	ticketsIssued.Inc()
}
