package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusSettings holds Prometheus-specific configuration
type PrometheusSettings struct {
	Enabled  bool
	Endpoint string
}

// SetupPrometheusExporter creates a Prometheus metrics reader backed by its
// own registry and the handler that serves that registry.
func SetupPrometheusExporter(settings PrometheusSettings) (metric.Reader, http.Handler, error) {
	if !settings.Enabled {
		return nil, nil, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return exporter, handler, nil
}

// MetricsHandler returns the Prometheus scrape handler, or nil when the
// Prometheus exporter is not enabled.
func (om *Manager) MetricsHandler() http.Handler {
	return om.promHandler
}

// MetricsEndpoint returns the path the scrape handler should be mounted on
func (om *Manager) MetricsEndpoint() string {
	if om.settings.Prometheus.Endpoint == "" {
		return "/metrics"
	}
	return om.settings.Prometheus.Endpoint
}
