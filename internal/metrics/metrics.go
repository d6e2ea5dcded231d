package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "securelink"

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	LinksIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_issued_total",
		Help:      "Secure links issued.",
	})

	LinksRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_revoked_total",
		Help:      "Secure links revoked by staff.",
	})

	// Validations is labelled by result: ok or the rejection code.
	Validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_validations_total",
		Help:      "Token validation outcomes.",
	}, []string{"result"})

	AccessDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_denials_total",
		Help:      "Document and dashboard requests denied, by internal reason.",
	}, []string{"reason"})

	DocumentViews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_views_total",
		Help:      "Authorized document views.",
	}, []string{"kind", "via"})

	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Access log rows that could not be persisted.",
	})

	CleanupRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_removed_total",
		Help:      "Rows removed by cleanup sweeps.",
	}, []string{"target"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		LinksIssued,
		LinksRevoked,
		Validations,
		AccessDenials,
		DocumentViews,
		AuditWriteFailures,
		CleanupRemoved,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
