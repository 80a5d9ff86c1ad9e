// Package telemetry provides observability plugs: Prometheus counters and
// histograms per pipeline, and OpenTelemetry spans around the continuation.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fxsml/goplug"
	"github.com/fxsml/goplug/message"
)

// Metrics holds the Prometheus metrics recorded by Observe plugs.
type Metrics struct {
	messagesTotal   *prometheus.CounterVec
	messageDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics instance on its own registry. Handler exposes
// it over HTTP.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := NewMetricsOn(registry)
	m.registry = registry
	return m
}

// NewMetricsOn registers the metrics on an existing Registerer, for
// applications that already expose one.
func NewMetricsOn(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goplug_messages_total",
				Help: "Total number of messages processed by pipeline and outcome",
			},
			[]string{"pipeline", "outcome"},
		),
		messageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goplug_message_duration_seconds",
				Help:    "Message processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),
	}
	reg.MustRegister(m.messagesTotal, m.messageDuration)
	return m
}

// Handler returns the HTTP handler serving the metrics. It is nil when the
// metrics were registered with NewMetricsOn.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the backing registry, or nil for NewMetricsOn instances.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe returns a plug that counts messages and observes their processing
// duration. Options carry the pipeline label: a string, or a map with
// "pipeline".
func (m *Metrics) Observe() goplug.Plug {
	return goplug.NewPlugInit(
		func(opts any) (any, error) {
			switch v := opts.(type) {
			case string:
				if v != "" {
					return v, nil
				}
			case map[string]any:
				if s, ok := v["pipeline"].(string); ok && s != "" {
					return s, nil
				}
			}
			return nil, errors.New("telemetry: metrics: pipeline label required")
		},
		func(ctx context.Context, msg message.Message, next goplug.Handler, opts any) (message.Message, error) {
			label := opts.(string)
			start := time.Now()
			out, err := next(ctx, msg)
			m.messagesTotal.WithLabelValues(label, outcome(out, err)).Inc()
			m.messageDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
			return out, err
		},
	)
}

func outcome(msg message.Message, err error) string {
	switch {
	case err != nil:
		return "error"
	case msg.Nacked():
		return "nack"
	default:
		return "ack"
	}
}

// Record increments the counter directly, for callers observing outside a
// pipeline.
func (m *Metrics) Record(pipeline string, msg message.Message, err error, duration time.Duration) {
	m.messagesTotal.WithLabelValues(pipeline, outcome(msg, err)).Inc()
	m.messageDuration.WithLabelValues(pipeline).Observe(duration.Seconds())
}
