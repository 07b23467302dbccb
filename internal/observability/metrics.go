package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	messagesSent    prometheus.Counter
	fanoutDelivered prometheus.Counter
	fanoutSkipped   prometheus.Counter
	wsConnections   prometheus.Gauge
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pulsechat_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulsechat_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	messagesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulsechat_messages_sent_total",
		Help: "Messages persisted by the send endpoint.",
	})
	fanoutDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulsechat_fanout_delivered_total",
		Help: "New-message events pushed to a live recipient connection.",
	})
	fanoutSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pulsechat_fanout_skipped_total",
		Help: "Fan-out attempts with no live recipient connection.",
	})
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pulsechat_ws_connections",
		Help: "Currently registered websocket connections.",
	})
	registry.MustRegister(requests, duration, messagesSent, fanoutDelivered, fanoutSkipped, wsConnections)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		messagesSent:    messagesSent,
		fanoutDelivered: fanoutDelivered,
		fanoutSkipped:   fanoutSkipped,
		wsConnections:   wsConnections,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// MessageSent increments the persisted-message counter.
func (m *Metrics) MessageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

// FanOutDelivered increments the delivered fan-out counter.
func (m *Metrics) FanOutDelivered() {
	if m != nil {
		m.fanoutDelivered.Inc()
	}
}

// FanOutSkipped increments the skipped fan-out counter.
func (m *Metrics) FanOutSkipped() {
	if m != nil {
		m.fanoutSkipped.Inc()
	}
}

// ConnectionOpened records a new registered websocket connection.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

// ConnectionClosed records a websocket connection going away.
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}

// Registerer exposes the registry for registering custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
