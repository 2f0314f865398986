package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evtelemetry/backend/services/telemetry-service/internal/models"
)

func TestSampleIngestedSplitsByResult(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SampleIngested(models.KindVehicle, true)
	m.SampleIngested(models.KindVehicle, false)
	m.SampleIngested(models.KindMeter, true)
	m.IngestFailed(models.KindMeter)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.samplesIngested.WithLabelValues("vehicle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.latestUpdates.WithLabelValues("vehicle", "stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.latestUpdates.WithLabelValues("meter", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestErrors.WithLabelValues("meter")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SampleIngested(models.KindMeter, true)
		m.IngestFailed(models.KindMeter)
		m.SummaryServed("ready")
		m.ObserveHTTP("/health", http.StatusOK, time.Millisecond)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SummaryServed("insufficient")
	m.ObserveHTTP("/v1/analytics/{vehicleId}/summary", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `telemetry_summary_requests_total{outcome="insufficient"} 1`))
	assert.True(t, strings.Contains(body, `http_requests_total{route="/v1/analytics/{vehicleId}/summary",status="200"} 1`))
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)
	sr.WriteHeader(http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, sr.Status)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	_, _, err := sr.Hijack()
	assert.Error(t, err)
}
