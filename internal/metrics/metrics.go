// Package metrics exposes Prometheus collectors for the enrichment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolveOutcomes counts redirect-resolution results by outcome:
	// passthrough, resolved, blocked, transport_error.
	ResolveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_resolve_outcomes_total",
		Help: "Redirect resolution outcomes.",
	}, []string{"outcome"})

	// DescribeOutcomes counts description-extraction results by outcome:
	// extracted, empty, no_parser, transport_error.
	DescribeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_describe_outcomes_total",
		Help: "Description extraction outcomes.",
	}, []string{"outcome"})

	// RetryPasses counts fault-rate retry passes per enrichment stage.
	RetryPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_retry_passes_total",
		Help: "Retry passes executed by the fault-rate controller.",
	}, []string{"stage"})

	// ResidualFailures records the failure count left when a stage's retry
	// loop exited, whether by convergence or budget exhaustion.
	ResidualFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_residual_failures",
		Help: "Failures remaining after a stage's retry loop exited.",
	}, []string{"stage"})

	// HTTPRequests counts requests served by the observability endpoints.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_http_requests_total",
		Help: "HTTP requests served, by method, route, and status.",
	}, []string{"method", "route", "status"})
)
