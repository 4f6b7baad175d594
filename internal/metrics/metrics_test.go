package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveUpload(OutcomeSuccess)
	m.ObserveUpload(OutcomeSuccess)
	m.ObserveUpload(OutcomeClientError)
	m.ObserveModelCall("openai:gpt-4o", nil, 2*time.Second)
	m.ObserveModelCall("openai:gpt-4o", errors.New("down"), time.Second)
	m.ObserveImageSize(5000)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploads.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(OutcomeClientError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelErrors.WithLabelValues("openai:gpt-4o")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.imageBytes))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload(OutcomeServerError)
		m.ObserveImageSize(1)
		m.ObserveModelCall("x", nil, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveUpload(OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ecosort_uploads_total{outcome="success"} 1`)
}
