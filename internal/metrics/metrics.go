package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los instrumentos de Prometheus del servicio.
// Todos los métodos aceptan un receptor nil.
type Metrics struct {
	registry        *prometheus.Registry
	telemetryEvents *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registra los instrumentos en un registry propio.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		telemetryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_events_total",
			Help:      "Telemetry events by delivery result.",
		}, []string{"result"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by operation and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.telemetryEvents,
		m.loginAttempts,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) TelemetryEvent(result string) {
	if m == nil {
		return
	}
	m.telemetryEvents.WithLabelValues(result).Inc()
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// Handler expone /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer permite inspeccionar los valores en tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
