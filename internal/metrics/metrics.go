// Package metrics holds the prometheus collectors for the session service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_gateway_requests_total",
		Help: "Upstream API calls by operation and outcome",
	}, []string{"op", "outcome"})

	gatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_gateway_request_duration_seconds",
		Help:    "Upstream API call duration in seconds",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op"})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_mutations_total",
		Help: "Optimistic collection mutations by final state",
	}, []string{"kind", "op", "state"})

	reconcileItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reconcile_items_total",
		Help: "Guest items pushed upstream during login reconciliation",
	}, []string{"kind", "outcome"})

	catalogResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_catalog_resolutions_total",
		Help: "Catalog filter resolutions by result source and matching pass",
	}, []string{"source", "pass"})
)

// ObserveGateway records one upstream call.
func ObserveGateway(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(op, outcome).Inc()
	gatewayDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveMutation records the terminal state of a mutation.
func ObserveMutation(kind, op, state string) {
	mutations.WithLabelValues(kind, op, state).Inc()
}

// ObserveReconcileItem records one guest item push.
func ObserveReconcileItem(kind string, ok bool) {
	outcome := "added"
	if !ok {
		outcome = "failed"
	}
	reconcileItems.WithLabelValues(kind, outcome).Inc()
}

// ObserveResolution records where a catalog page came from.
func ObserveResolution(source, pass string) {
	if pass == "" {
		pass = "none"
	}
	catalogResolutions.WithLabelValues(source, pass).Inc()
}

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_http_requests_total",
	Help: "HTTP requests served by method and status code",
}, []string{"method", "code"})

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "storefront_http_request_duration_seconds",
	Help:    "HTTP request duration in seconds",
	Buckets: prometheus.DefBuckets,
}, []string{"method"})

// ObserveRequest records one served HTTP request.
func ObserveRequest(method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
