package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesInstruments(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SignalsEmitted.Add(3)
	m.DetectionRuns.WithLabelValues("ok").Inc()
	m.DatasetBuckets.Set(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "arbscan_signals_emitted_total 3")
	assert.Contains(t, string(body), `arbscan_detection_runs_total{result="ok"} 1`)
	assert.Contains(t, string(body), "arbscan_dataset_buckets 42")
}

func TestNewPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
