// Package metrics exposes Prometheus counters for the circulation
// operations. Everything registers on the default registry; the HTTP layer
// serves it at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoansIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_loans_issued_total",
		Help: "Number of loans successfully issued.",
	})

	LoansReturned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_loans_returned_total",
		Help: "Number of loans successfully returned.",
	})

	LoansRenewed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_loans_renewed_total",
		Help: "Number of loans successfully renewed.",
	})

	LatePenaltiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_late_penalties_created_total",
		Help: "Number of late-return penalties created on return.",
	})

	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_reservations_created_total",
		Help: "Number of reservations placed in a queue.",
	})

	PenaltiesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_penalties_settled_total",
		Help: "Number of penalties settled.",
	})

	OperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_operation_failures_total",
		Help: "Failed circulation operations by operation name.",
	}, []string{"operation"})
)
