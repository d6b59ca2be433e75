package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *EngineMetrics
	m.ProcessStarted("k")
	m.JobExecuted(OutcomeFailure)
	assert.Nil(t, m.Registry())
	h := m.Middleware(http.NotFoundHandler())
	assert.NotNil(t, h)
}

func TestCountersOnPrivateRegistry(t *testing.T) {
	m := NewEngineMetrics()
	m.ProcessStarted("order")
	m.ProcessStarted("order")
	m.JobExecuted(OutcomeSuccess)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.processesStarted.WithLabelValues("order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsExecuted.WithLabelValues(OutcomeSuccess)))
}

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	m := NewEngineMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/runtime/tasks/{taskId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runtime/tasks/42", nil))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() != "procflow_rest_request_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] == "/runtime/tasks/{taskId}" && labels["status"] == "404" {
				found = true
			}
		}
	}
	assert.True(t, found)
}
