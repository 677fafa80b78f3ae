package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/c360studio/sparqlpad/llm"
)

// Metrics holds the Prometheus instruments exposed at /metrics.
type Metrics struct {
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram

	ChatTurnsTotal     *prometheus.CounterVec
	ChatDuration       prometheus.Histogram
	CompletionFailures *prometheus.CounterVec
	CompletionDuration prometheus.Histogram

	TriplesLoaded prometheus.Gauge
	SessionsLive  prometheus.GaugeFunc
}

// NewMetrics registers the sparqlpad instruments on reg. sessionCount may be
// nil when no chat store exists.
func NewMetrics(reg prometheus.Registerer, sessionCount func() float64) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sparqlpad_queries_total",
			Help: "SPARQL queries executed, by query form and outcome.",
		}, []string{"form", "status"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sparqlpad_query_duration_seconds",
			Help:    "SPARQL query execution latency.",
			Buckets: prometheus.DefBuckets,
		}),
		ChatTurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sparqlpad_chat_turns_total",
			Help: "Assistant turns processed, by recorded intent.",
		}, []string{"intent"}),
		ChatDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sparqlpad_chat_turn_duration_seconds",
			Help:    "End-to-end chat turn latency including the completion call.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		CompletionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sparqlpad_completion_failures_total",
			Help: "Completion provider failures, by error kind.",
		}, []string{"kind"}),
		CompletionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sparqlpad_completion_duration_seconds",
			Help:    "Completion provider call latency.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		TriplesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sparqlpad_triples_loaded",
			Help: "Triples currently loaded in the graph.",
		}),
	}

	if sessionCount != nil {
		m.SessionsLive = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sparqlpad_chat_sessions_live",
			Help: "Chat sessions currently held in memory.",
		}, sessionCount)
	}

	return m
}

// instrumentedCompleter decorates a Completer with latency and failure
// metrics.
type instrumentedCompleter struct {
	next    llm.Completer
	metrics *Metrics
}

// InstrumentCompleter wraps next so every completion call is observed. A nil
// next returns nil, preserving disabled-assistant wiring.
func InstrumentCompleter(next llm.Completer, metrics *Metrics) llm.Completer {
	if next == nil {
		return nil
	}
	return &instrumentedCompleter{next: next, metrics: metrics}
}

func (c *instrumentedCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	c.metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		kind := string(llm.KindOf(err))
		if kind == "" {
			kind = "unknown"
		}
		c.metrics.CompletionFailures.WithLabelValues(kind).Inc()
	}
	return resp, err
}
