package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons recorded by the router.
const (
	ReasonUnknownType = "unknown_type"
	ReasonDisabled    = "disabled"
)

// Metrics groups the notification counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	admitted        *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	channelFailures *prometheus.CounterVec
	pushOutcomes    *prometheus.CounterVec
	feedEvents      *prometheus.CounterVec
}

// New creates the counters on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		admitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfish_notify",
			Name:      "admitted_total",
			Help:      "Notifications admitted into the store, by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfish_notify",
			Name:      "dropped_total",
			Help:      "Events refused by the router, by reason.",
		}, []string{"reason"}),
		channelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfish_notify",
			Name:      "channel_failures_total",
			Help:      "Best-effort delivery channel failures, by channel.",
		}, []string{"channel"}),
		pushOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfish_notify",
			Name:      "push_transitions_total",
			Help:      "Push subscription transitions, by operation and result.",
		}, []string{"op", "result"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cfish_notify",
			Name:      "feed_events_total",
			Help:      "Events received from feed sources, by source.",
		}, []string{"source"}),
	}
	m.registry.MustRegister(m.admitted, m.dropped, m.channelFailures, m.pushOutcomes, m.feedEvents)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Admitted(notificationType string) {
	if m == nil {
		return
	}
	m.admitted.WithLabelValues(notificationType).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ChannelFailed(channel string) {
	if m == nil {
		return
	}
	m.channelFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) PushTransition(op, result string) {
	if m == nil {
		return
	}
	m.pushOutcomes.WithLabelValues(op, result).Inc()
}

func (m *Metrics) FeedEvent(source string) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(source).Inc()
}
