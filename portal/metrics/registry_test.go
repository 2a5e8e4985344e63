package metrics_test

import (
	"testing"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/assert"
)

func TestRegisterMetrics_Twice(t *testing.T) {
	services := []string{"resolver", "executor", "router_client", "stream", "unknown"}
	metrics.RegisterMetrics(services)
	// a second registration hits AlreadyRegisteredError and must not panic
	metrics.RegisterMetrics(services)

	metrics.RecordLookup("from", "miss")
	metrics.RecordExecution("succeeded", "", 1.5)

	families, err := prometheus.DefaultGatherer.Gather()
	assert.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["portal_resolver_lookups_total"])
	assert.True(t, found["portal_executor_executions_total"])
	assert.True(t, found["portal_executor_execution_duration_seconds"])
}
