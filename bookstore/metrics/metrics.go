// Package metrics exposes Prometheus collectors for the order lifecycle and the admin wizards.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every bookbot collector.
const Namespace = "bookbot"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders created in PENDING.",
		},
	)

	proofsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "orders",
			Name:      "proofs_total",
			Help:      "Proof-of-payment attachments by outcome.",
		},
		[]string{"outcome"},
	)

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "orders",
			Name:      "decisions_total",
			Help:      "Administrator decisions by verdict and outcome.",
		},
		[]string{"decision", "outcome"},
	)

	deliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notify",
			Name:      "delivery_failures_total",
			Help:      "Notifications that could not be delivered, by purpose.",
		},
		[]string{"purpose"},
	)

	wizardEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "wizard",
			Name:      "events_total",
			Help:      "Wizard transitions by flow and kind (started, committed, cancelled, replaced, expired, rejected_input).",
		},
		[]string{"flow", "kind"},
	)

	adminClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "access",
			Name:      "claims_total",
			Help:      "Administrator claim attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		ordersCreated,
		proofsSubmitted,
		decisions,
		deliveryFailures,
		wizardEvents,
		adminClaims,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordOrderCreated counts a new order.
func RecordOrderCreated() { ordersCreated.Inc() }

// RecordProof counts a proof attachment; outcome is "ok", "duplicate" or "no_order".
func RecordProof(outcome string) { proofsSubmitted.WithLabelValues(outcome).Inc() }

// RecordDecision counts a decision; outcome is "ok", "already_decided" or "fail".
func RecordDecision(decision, outcome string) { decisions.WithLabelValues(decision, outcome).Inc() }

// RecordDeliveryFailure counts an undelivered notification.
func RecordDeliveryFailure(purpose string) { deliveryFailures.WithLabelValues(purpose).Inc() }

// RecordWizard counts a wizard transition.
func RecordWizard(flow, kind string) { wizardEvents.WithLabelValues(flow, kind).Inc() }

// RecordClaim counts an administrator claim attempt.
func RecordClaim(outcome string) { adminClaims.WithLabelValues(outcome).Inc() }
