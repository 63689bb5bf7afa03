package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sectorfolio"

// Collector owns a private Prometheus registry with the HTTP, agent loop
// and model call metrics.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	agentRounds       *prometheus.CounterVec
	agentTerminations *prometheus.CounterVec
	toolInvocations   *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec

	modelCalls        *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	modelTokens       *prometheus.CounterVec
}

// New constructs a collector and registers every metric.
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		agentRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "rounds_total",
			Help:      "Model rounds executed by agent loops.",
		}, []string{"loop"}),
		agentTerminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "terminations_total",
			Help:      "Agent loop terminations by final state.",
		}, []string{"loop", "state"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Chat model calls by provider and status.",
		}, []string{"provider", "status"}),
		modelCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Chat model call latency.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		}, []string{"provider"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by chat model calls.",
		}, []string{"provider", "direction"}),
	}

	for _, m := range []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.agentRounds, c.agentTerminations, c.toolInvocations, c.toolDuration,
		c.modelCalls, c.modelCallDuration, c.modelTokens,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
// Routed requests are labelled by their mux pattern.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveRound counts one model round of the named loop.
func (c *Collector) ObserveRound(loop string) {
	c.agentRounds.WithLabelValues(loop).Inc()
}

// ObserveTermination counts a finished loop.
func (c *Collector) ObserveTermination(loop, state string) {
	c.agentTerminations.WithLabelValues(loop, state).Inc()
}

// ObserveToolCall records one tool invocation.
func (c *Collector) ObserveToolCall(tool, outcome string, d time.Duration) {
	c.toolInvocations.WithLabelValues(tool, outcome).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveModelCall records one chat model call.
func (c *Collector) ObserveModelCall(provider, status string, d time.Duration, inputTokens, outputTokens int) {
	c.modelCalls.WithLabelValues(provider, status).Inc()
	c.modelCallDuration.WithLabelValues(provider).Observe(d.Seconds())
	if inputTokens > 0 {
		c.modelTokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		c.modelTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
