package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	gateDecisions       *prometheus.CounterVec
	tokensIssued        *prometheus.CounterVec
	authAttempts        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gate_decisions_total",
			Help: "Authentication gate decisions by transport and outcome.",
		}, []string{"transport", "outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Token pairs issued, by flow.",
		}, []string{"flow"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_credential_attempts_total",
			Help: "Credential endpoint calls by operation and result.",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.gateDecisions, m.tokensIssued, m.authAttempts)
	return m
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// GateDecision counts one authentication gate outcome.
func (m *Metrics) GateDecision(transport, outcome string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(transport, outcome).Inc()
}

// TokensIssued counts a token pair minted by flow (signin, refresh).
func (m *Metrics) TokensIssued(flow string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(flow).Inc()
}

// AuthAttempt counts a credential endpoint call.
func (m *Metrics) AuthAttempt(op, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(op, result).Inc()
}

// Instrument measures RPS, latency and in-flight requests.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses path parameters so label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 3 && parts[0] == "auth" && parts[1] == "refresh" && parts[2] != "" {
		return "/auth/refresh/:username"
	}
	return p
}

// statusWriter - локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
