package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

// Metrics holds the service collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	samplesIngested *prometheus.CounterVec
	latestUpdates   *prometheus.CounterVec
	ingestErrors    *prometheus.CounterVec
	summaries       *prometheus.CounterVec

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		samplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_samples_ingested_total",
			Help: "Samples appended to history by device kind.",
		}, []string{"kind"}),
		latestUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_latest_updates_total",
			Help: "Latest-state reconciliations by device kind and result.",
		}, []string{"kind", "result"}),
		ingestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_ingest_errors_total",
			Help: "Ingestion units of work aborted by storage failures.",
		}, []string{"kind"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_summary_requests_total",
			Help: "Efficiency summary requests by outcome.",
		}, []string{"outcome"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.samplesIngested,
		m.latestUpdates,
		m.ingestErrors,
		m.summaries,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	return m
}

// SampleIngested counts a committed sample and whether it replaced the latest row.
func (m *Metrics) SampleIngested(kind models.DeviceKind, applied bool) {
	if m == nil {
		return
	}
	m.samplesIngested.WithLabelValues(string(kind)).Inc()
	result := "stale"
	if applied {
		result = "applied"
	}
	m.latestUpdates.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) IngestFailed(kind models.DeviceKind) {
	if m == nil {
		return
	}
	m.ingestErrors.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) SummaryServed(outcome string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// StatusRecorder captures the response status for access logs and metrics.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

// NewStatusRecorder wraps w with a 200 default.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (s *StatusRecorder) WriteHeader(status int) {
	s.Status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (s *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	s.Status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
