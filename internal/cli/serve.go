package cli

import (
	"fmt"

	"resumefit/internal/config"
	"resumefit/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web UI",
	Long: `Start an HTTP server with a single page UI for uploading a resume, analyzing
it against job descriptions and browsing the analysis history. Every browser gets
its own session with the analysis service.

Available endpoints:
- GET /: Web UI
- POST /upload: Upload a resume (multipart field "resume")
- POST /analyze: Analyze the uploaded resume
- GET /sample-job: Random sample job
- GET /history: Recent analyses
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

// serveOverrides are command line values that replace the configured ones
type serveOverrides struct {
	Port     string
	Host     string
	TLSMode  string
	CertFile string
	KeyFile  string
}

var serveFlags serveOverrides

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.Port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.TLSMode, "tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.CertFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.KeyFile, "key-file", "", "Server private key file (PEM, overrides config)")
}

// apply copies every non-empty override into cfg
func (o serveOverrides) apply(cfg *config.Config) {
	set := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	set(&cfg.Server.Port, o.Port)
	set(&cfg.Server.Host, o.Host)
	set(&cfg.Server.TLS.Mode, o.TLSMode)
	set(&cfg.Server.TLS.CertFile, o.CertFile)
	set(&cfg.Server.TLS.KeyFile, o.KeyFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	serveFlags.apply(cfg)

	// Validate TLS configuration after applying overrides
	tempConfig := &config.Config{Server: cfg.Server}
	if err := tempConfig.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	return server.NewServer(cfg, server.ConfigFrom(cfg, Version), logger).Start()
}
