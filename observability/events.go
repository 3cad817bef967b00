package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics tracks lifecycle event publication and webhook delivery.
type EventMetrics struct {
	published  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	backlog    prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the lazily-initialised event metrics registered with the
// default prometheus registerer.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = NewEventMetrics(prometheus.DefaultRegisterer)
	})
	return eventRegistry
}

// NewEventMetrics builds and registers the event collectors with reg.
func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Lifecycle events published, segmented by event type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anchor",
			Subsystem: "events",
			Name:      "deliveries_total",
			Help:      "Webhook delivery attempts segmented by outcome.",
		}, []string{"outcome"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "anchor",
			Subsystem: "events",
			Name:      "backlog",
			Help:      "Delivery tasks waiting in the event queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.published, m.deliveries, m.backlog)
	}
	return m
}

// RecordPublished increments the publication counter for an event type.
func (m *EventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.published.WithLabelValues(normalized).Inc()
}

// RecordDelivery counts one webhook delivery attempt.
func (m *EventMetrics) RecordDelivery(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

// SetBacklog reports the number of queued delivery tasks.
func (m *EventMetrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.backlog.Set(float64(n))
}
