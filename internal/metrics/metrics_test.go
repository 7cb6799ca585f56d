package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.Reassignments.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Reassignments))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Reassignments))
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.CasesCreated.WithLabelValues("Pendiente").Inc()
	m.ReassignmentFailures.WithLabelValues("conflict").Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `fiscalia_cases_created_total{status="Pendiente"} 1`)
	assert.Contains(t, string(body), `fiscalia_reassignment_failures_total{kind="conflict"} 2`)
}
