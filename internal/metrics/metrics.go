package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the case tracking core.
type Metrics struct {
	Registry             *prometheus.Registry
	FiscalesRegistered   prometheus.Counter
	CasesCreated         *prometheus.CounterVec
	CaseTransitions      *prometheus.CounterVec
	Reassignments        prometheus.Counter
	ReassignmentFailures *prometheus.CounterVec
	WebhookDeliveries    *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry so several
// engines can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FiscalesRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "fiscalia_fiscales_registered_total",
			Help: "Fiscales registered.",
		}),
		CasesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalia_cases_created_total",
			Help: "Cases created, by initial status.",
		}, []string{"status"}),
		CaseTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalia_case_transitions_total",
			Help: "Case status transitions, by target status.",
		}, []string{"status"}),
		Reassignments: f.NewCounter(prometheus.CounterOpts{
			Name: "fiscalia_reassignments_total",
			Help: "Successful case reassignments.",
		}),
		ReassignmentFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalia_reassignment_failures_total",
			Help: "Rejected or failed reassignments, by error kind.",
		}, []string{"kind"}),
		WebhookDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscalia_webhook_deliveries_total",
			Help: "Webhook delivery attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
