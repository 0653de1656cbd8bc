package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {

	m := New()

	m.Call("send_stats", "ok")

	m.Call("send_stats", "ok")

	m.Duplicate()

	m.CacheLookup("uptime", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("send_stats", "ok")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicates))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("uptime", "hit")))
}

func TestNilMetricsIsNoop(t *testing.T) {

	var m *Metrics

	assert.NotPanics(t, func() {

		m.Call("x", "ok")

		m.Duplicate()

		m.MachineCreated()

		m.CacheLookup("x", false)
	})
}

func TestHandler(t *testing.T) {

	m := New()

	m.MachineCreated()

	rec := httptest.NewRecorder()

	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, strings.Contains(rec.Body.String(), "statsdb_machine_configs_created_total 1"))
}
