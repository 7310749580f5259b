// Package metrics defines the Prometheus collectors of the chat service and
// serves them for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "serverless_demo"
	subsystem = "websocket_chat"
)

// Message kinds for MessagesStored.
const (
	KindHuman = "human"
	KindAI    = "ai"
)

// Outcomes for AIReplies.
const (
	OutcomeSuccess         = "success"
	OutcomeSecretError     = "secret_error"
	OutcomeStoreError      = "store_error"
	OutcomeCompletionError = "completion_error"
)

// Metrics holds the service collectors and the registry they belong to.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat metrics
	MessagesStored      *prometheus.CounterVec
	AIReplies           *prometheus.CounterVec
	CompletionFailures  prometheus.Counter
	CompletionDuration  prometheus.Histogram
	ContextTurnsDropped prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors (process_start_time_seconds marks cold
// starts).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		MessagesStored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_stored_total",
				Help:      "Total messages appended to the store",
			},
			[]string{"kind"}, // "human" or "ai"
		),
		AIReplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ai_replies_total",
				Help:      "Total AI reply requests by outcome",
			},
			[]string{"outcome"},
		),
		CompletionFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "completion_failures_total",
				Help:      "Total failed completion calls",
			},
		),
		CompletionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "completion_duration_seconds",
				Help:      "Completion call latency",
				Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
		),
		ContextTurnsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "context_turns_dropped_total",
				Help:      "History turns dropped to fit the context window",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
