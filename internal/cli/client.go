package cli

import (
	"context"
	"io"
	"time"

	"resumefit/internal/backend"
	"resumefit/internal/common"
	"resumefit/internal/config"
	"resumefit/internal/errors"
	"resumefit/internal/observability"
	"resumefit/internal/render"
	"resumefit/internal/workflow"

	"github.com/spf13/cobra"
)

// client bundles everything one command needs to drive a workflow session
// against the analysis backend.
type client struct {
	cfg        *config.Config
	logger     *errors.Logger
	om         *observability.Manager
	backend    *backend.Client
	controller *workflow.Controller
	files      *common.FileProcessor
	output     *common.OutputHandler
	history    render.HistoryOptions
}

// newClient wires a backend client and a workflow controller from cfg.
// Output that is not sent to a file is written to out.
func newClient(cfg *config.Config, logger *errors.Logger, out io.Writer) (*client, error) {
	om, err := observability.NewManager(observability.GetSettings(cfg, Version))
	if err != nil {
		return nil, errors.NewConfigError("OBSERVABILITY_INIT_FAILED", "Failed to initialize observability", err)
	}

	files := common.NewFileProcessor(logger, common.DocumentPolicy{
		AllowedExtensions: cfg.App.AllowedExtensions,
		MaxFileSize:       cfg.App.MaxFileSize,
	})
	api := backend.New(cfg.Backend, logger)

	return &client{
		cfg:     cfg,
		logger:  logger,
		om:      om,
		backend: api,
		controller: workflow.NewController(api, logger,
			workflow.WithTelemetry(om),
			workflow.WithDocumentValidator(files),
		),
		files:  files,
		output: common.NewOutputHandlerWithWriter(logger, out),
		history: render.HistoryOptions{
			Location:   cfg.Location(),
			DateLayout: cfg.App.DateLayout,
		},
	}, nil
}

// clientFromCommand builds a client from the config and logger attached to
// the command context.
func clientFromCommand(cmd *cobra.Command) (*client, error) {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	return newClient(cfg, logger, cmd.OutOrStdout())
}

// Close flushes telemetry
func (c *client) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.om.Shutdown(ctx); err != nil {
		c.logger.LogError(err, "Failed to shutdown observability")
	}
}

// awaitHistory waits up to app.historyWait for a post-analysis refresh and
// returns the rendered history when it finished with rows.
func (c *client) awaitHistory(ctx context.Context, refresh *workflow.HistoryRefresh) (render.HistoryView, bool) {
	if refresh == nil {
		return render.HistoryView{}, false
	}
	if wait := c.cfg.App.HistoryWait; wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		if err := refresh.Wait(waitCtx); err != nil {
			c.logger.Debug("History refresh still running, skipping it", "wait", wait.String())
		}
	}
	entries, ok := refresh.Result()
	if !ok {
		return render.HistoryView{}, false
	}
	return render.History(entries, c.history)
}

// outputFlags registers the --format and --output flags shared by commands
// that print a formatted result.
func outputFlags(cmd *cobra.Command, cc *common.CommandConfig) {
	cmd.Flags().StringVarP(&cc.OutputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&cc.OutputFormat, "format", "f", "", "Output format: json, text, markdown, html (default from config)")
}

// resolveOutput applies the configured default format to cc
func resolveOutput(cfg *config.Config, cc common.CommandConfig) (common.CommandConfig, error) {
	format, err := common.ResolveOutputFormat(cc.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
	if err != nil {
		return cc, err
	}
	cc.OutputFormat = format
	return cc, nil
}
