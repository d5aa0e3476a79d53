package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "rtsm"

// Collector records protocol activity of a node.
type Collector struct {
	messagesReceived  *prometheus.CounterVec
	messagesPublished *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	transportErrors   *prometheus.CounterVec
	presenceEvents    *prometheus.CounterVec
	remoteDevices     prometheus.Gauge
	localModels       prometheus.Gauge
	dispatchDuration  *prometheus.HistogramVec
}

// NewCollector creates a collector whose metrics are registered with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "messages_received_total",
				Help:      "Envelopes dispatched, by action",
			},
			[]string{"action"},
		),
		messagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "messages_published_total",
				Help:      "Envelopes published, by action",
			},
			[]string{"action"},
		),
		messagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "messages_dropped_total",
				Help:      "Inbound messages ignored, by reason",
			},
			[]string{"reason"},
		),
		transportErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transport_errors_total",
				Help:      "Failed transport operations, by operation",
			},
			[]string{"op"},
		),
		presenceEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "presence_events_total",
				Help:      "Presence payloads handled, by kind (joined, left)",
			},
			[]string{"kind"},
		),
		remoteDevices: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "remote_devices",
				Help:      "Remote devices currently known",
			},
		),
		localModels: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "local_models",
				Help:      "Models registered on this node",
			},
		),
		dispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent handling one inbound message, including callbacks",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"action"},
		),
	}
}

// RecordReceived counts a dispatched envelope and its handling time.
func (c *Collector) RecordReceived(action string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.messagesReceived.WithLabelValues(action).Inc()
	c.dispatchDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// RecordPublished counts a published envelope.
func (c *Collector) RecordPublished(action string) {
	if c == nil {
		return
	}
	c.messagesPublished.WithLabelValues(action).Inc()
}

// RecordDropped counts an ignored inbound message.
func (c *Collector) RecordDropped(reason string) {
	if c == nil {
		return
	}
	c.messagesDropped.WithLabelValues(reason).Inc()
}

// RecordTransportError counts a failed transport operation.
func (c *Collector) RecordTransportError(op string) {
	if c == nil {
		return
	}
	c.transportErrors.WithLabelValues(op).Inc()
}

// RecordPresence counts a presence event of the given kind.
func (c *Collector) RecordPresence(kind string) {
	if c == nil {
		return
	}
	c.presenceEvents.WithLabelValues(kind).Inc()
}

// SetRemoteDevices sets the remote device gauge.
func (c *Collector) SetRemoteDevices(n int) {
	if c == nil {
		return
	}
	c.remoteDevices.Set(float64(n))
}

// SetLocalModels sets the local model gauge.
func (c *Collector) SetLocalModels(n int) {
	if c == nil {
		return
	}
	c.localModels.Set(float64(n))
}
