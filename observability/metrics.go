package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"anchorplatform/core/types"
)

// AnchorMetrics groups the collectors recorded by the RPC surface and the
// transaction handlers.
type AnchorMetrics struct {
	transactions *prometheus.CounterVec
	requests     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	throttles    *prometheus.CounterVec
}

var (
	anchorMetricsOnce sync.Once
	anchorRegistry    *AnchorMetrics
)

// Anchor returns the lazily-initialised metrics registered with the default
// prometheus registerer.
func Anchor() *AnchorMetrics {
	anchorMetricsOnce.Do(func() {
		anchorRegistry = NewAnchorMetrics(prometheus.DefaultRegisterer)
	})
	return anchorRegistry
}

// NewAnchorMetrics builds and registers the collectors with reg.
func NewAnchorMetrics(reg prometheus.Registerer) *AnchorMetrics {
	m := &AnchorMetrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "platform",
			Name:      "transactions_total",
			Help:      "Transactions successfully handled by an RPC method, segmented by protocol family and method.",
		}, []string{"sep", "method"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total JSON-RPC requests segmented by method and outcome.",
		}, []string{"method", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Total JSON-RPC errors segmented by method and error code.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anchor",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for JSON-RPC method handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "rpc",
			Name:      "throttles_total",
			Help:      "Count of requests rejected by the rate limiter.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.requests, m.errors, m.latency, m.throttles)
	}
	return m
}

// TransactionHandled increments the per-protocol transaction counter.
func (m *AnchorMetrics) TransactionHandled(protocol types.Protocol, method string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(protocol.Label(), method).Inc()
}

// ObserveRPC records the outcome of a single JSON-RPC call. code is zero on
// success.
func (m *AnchorMetrics) ObserveRPC(method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	method = normalizeMethod(method)
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter.
func (m *AnchorMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

func normalizeMethod(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return "unknown"
	}
	return method
}
