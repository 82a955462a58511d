package observability

import (
	"net/http"
	"time"

	"resumefit/internal/config"
)

// Settings holds the resolved observability settings
type Settings struct {
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Enabled            bool
	TracingEnabled     bool
	SampleRate         float64
	MetricsEnabled     bool
	CollectionInterval time.Duration
	ConsoleOutput      bool
	PrettyPrint        bool
	Prometheus         PrometheusSettings
	OTLP               config.OTLPConfig
}

// GetSettings creates observability settings from provided config
func GetSettings(cfg *config.Config, version string) Settings {
	if cfg == nil {
		// Fall back to a disabled manager if config is not available
		return Settings{
			ServiceName:        "resumefit",
			ServiceVersion:     version,
			ServiceInstance:    "resumefit-1",
			SampleRate:         1.0,
			CollectionInterval: 15 * time.Second,
			Prometheus:         PrometheusSettings{Endpoint: "/metrics"},
		}
	}

	obs := cfg.Observability

	// Use app version if service version not specified
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return Settings{
		ServiceName:        obs.ServiceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    obs.ServiceInstance,
		Enabled:            obs.Enabled,
		TracingEnabled:     obs.Tracing.Enabled,
		SampleRate:         obs.Tracing.SampleRate,
		MetricsEnabled:     obs.Metrics.Enabled,
		CollectionInterval: obs.Metrics.CollectionInterval,
		ConsoleOutput:      obs.Console.Enabled,
		PrettyPrint:        obs.Console.PrettyPrint,
		Prometheus: PrometheusSettings{
			Enabled:  obs.Prometheus.Enabled,
			Endpoint: obs.Prometheus.Endpoint,
		},
		OTLP: obs.OTLP,
	}
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation.
// It is a pass-through when observability is disabled.
func (om *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.settings.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}
	return newHTTPMiddleware(om)
}
