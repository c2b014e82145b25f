package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.RequestCreated()
	m.RequestCreated()
	m.RequestRetrieved("found")
	m.RequestRetrieved("expired")
	m.RequestRetrieved("found")
	m.SignTime(3 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.created))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.retrieved.WithLabelValues("found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retrieved.WithLabelValues("expired")))

	count, err := testutil.GatherAndCount(reg, "verifier_request_object_sign_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewPrometheus_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg)

	assert.Panics(t, func() { NewPrometheus(reg) })
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheus(reg).RequestCreated()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "verifier_presentation_requests_created_total 1")
}

func TestNoMetrics(t *testing.T) {
	var m Metrics = NoMetrics{}

	assert.NotPanics(t, func() {
		m.RequestCreated()
		m.RequestRetrieved("found")
		m.SignTime(time.Second)
	})
}
