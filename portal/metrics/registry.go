package metrics

import (
	"errors"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "metrics").Logger()
}

// RegisterMetrics registers the collectors of the given services with the default registry.
// Known services are "resolver", "executor", "router_client" and "stream".
func RegisterMetrics(services []string) {
	registerIfNotExists(collectors.NewGoCollector(), "go_collector")
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector")

	for _, service := range services {
		switch service {
		case "resolver":
			registerIfNotExists(resolverLookupsTotal, "resolver_lookups_total")
			registerIfNotExists(resolverAssetsReturned, "resolver_assets_returned")
		case "executor":
			registerIfNotExists(executorExecutionsTotal, "executor_executions_total")
			registerIfNotExists(executorExecutionDuration, "executor_execution_duration")
			registerIfNotExists(executorProgressEventsTotal, "executor_progress_events_total")
			registerIfNotExists(executorValidationFailuresTotal, "executor_validation_failures_total")
		case "router_client":
			registerIfNotExists(routerRequestsTotal, "router_client_requests_total")
			registerIfNotExists(routerFailoversTotal, "router_client_failovers_total")
		case "stream":
			registerIfNotExists(streamSessionsActive, "stream_sessions_active")
		default:
			log.Warn().Str("service", service).Msg("Unknown service type for metrics registration")
		}
	}
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			log.Debug().Str("collector", name).Msg("already registered")
		} else {
			log.Error().Err(err).Str("collector", name).Msg("Failed to register collector")
		}
	}
}
