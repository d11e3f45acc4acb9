// Package metrics holds the prometheus collectors for tree builds, proof
// requests and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "por"

// Result label values
const (
	ResultOK       = "ok"
	ResultEmpty    = "empty"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics is the set of collectors used by the proof service and server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	rootComputations *prometheus.CounterVec
	proofRequests    *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	treeLeaves       prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	rateLimited      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsWithRegistry(reg, reg)
	if err != nil {
		// a fresh registry cannot already hold these collectors
		panic(err)
	}
	return m
}

// NewMetricsWithRegistry registers the collectors with reg and exposes them through gatherer
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		registry: gatherer,
		rootComputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "root_computations_total",
			Help:      "Number of merkle root computations by result.",
		}, []string{"result"}),
		proofRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_requests_total",
			Help:      "Number of inclusion proof requests by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tree_build_duration_seconds",
			Help:      "Time spent hashing a full tree for a root or proof.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		treeLeaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_leaves",
			Help:      "Number of leaves in the most recently built tree.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Number of HTTP requests rejected by the rate limiter.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.rootComputations,
		m.proofRequests,
		m.buildDuration,
		m.treeLeaves,
		m.httpRequests,
		m.rateLimited,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTreeBuild records a completed tree build over leaves items
func (m *Metrics) ObserveTreeBuild(leaves int, took time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(took.Seconds())
	m.treeLeaves.Set(float64(leaves))
}

// RootComputed counts a root computation with the given result label
func (m *Metrics) RootComputed(result string) {
	if m == nil {
		return
	}
	m.rootComputations.WithLabelValues(result).Inc()
}

// ProofRequested counts a proof request with the given result label
func (m *Metrics) ProofRequested(result string) {
	if m == nil {
		return
	}
	m.proofRequests.WithLabelValues(result).Inc()
}

// HTTPRequest counts a served request
func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RateLimited counts a request rejected by the rate limiter
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// Handler serves the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
