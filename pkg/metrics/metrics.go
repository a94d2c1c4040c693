// Package metrics provides Prometheus metrics collection for the console.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors exposed by the console.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Incident domain metrics
	IncidentsDetectedTotal *prometheus.CounterVec
	IncidentsRecoveredTotal *prometheus.CounterVec
	ActionsExecutedTotal   *prometheus.CounterVec
	ActionsDeferredTotal   *prometheus.CounterVec
	NotificationsSentTotal *prometheus.CounterVec
	MonitorTickDuration    prometheus.Histogram
	MonitorTickFailures    *prometheus.CounterVec
	KnowledgeDocumentsTotal prometheus.Gauge

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered against
// the default Prometheus registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry. Tests
// pass a fresh prometheus.NewRegistry() to avoid collisions across cases.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		IncidentsDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_detected_total",
				Help: "Total number of incidents opened by cause code",
			},
			[]string{"scenario_code"},
		),
		IncidentsRecoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incidents_recovered_total",
				Help: "Total number of incidents that recovered by cause code",
			},
			[]string{"scenario_code"},
		),
		ActionsExecutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actions_executed_total",
				Help: "Total number of action plans executed",
			},
			[]string{"scenario_code"},
		),
		ActionsDeferredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actions_deferred_total",
				Help: "Total number of action plans deferred",
			},
			[]string{"scenario_code"},
		),
		NotificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of notification sink dispatches by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
		MonitorTickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_tick_duration_seconds",
				Help:    "Duration of a single Sampling Monitor poll tick",
				Buckets: prometheus.DefBuckets,
			},
		),
		MonitorTickFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_tick_failures_total",
				Help: "Total number of Sampling Monitor ticks that failed to fetch metrics",
			},
			[]string{"reason"},
		),
		KnowledgeDocumentsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "knowledge_documents_total",
				Help: "Current number of documents held in the knowledge store",
			},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.IncidentsDetectedTotal,
			m.IncidentsRecoveredTotal,
			m.ActionsExecutedTotal,
			m.ActionsDeferredTotal,
			m.NotificationsSentTotal,
			m.MonitorTickDuration,
			m.MonitorTickFailures,
			m.KnowledgeDocumentsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", environment()).Set(1)

	return m
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records an error by operation.
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// UpdateUptime updates the service uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// IncrementInFlight increments the in-flight requests gauge.
func (m *Metrics) IncrementInFlight() {
	m.RequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests gauge.
func (m *Metrics) DecrementInFlight() {
	m.RequestsInFlight.Dec()
}

func environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		return "development"
	}
	return env
}

// Enabled returns whether Prometheus metrics should be exposed.
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	switch raw {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance, creating one if necessary.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("incident-console")
	}
	return globalMetrics
}
