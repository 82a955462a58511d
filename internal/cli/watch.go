package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"resumefit/internal/common"
	"resumefit/internal/session"
	"resumefit/internal/watcher"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [resume-file]",
	Short: "Re-analyze a resume whenever it or the job description changes",
	Long: `Analyze a resume against the job description in --description-file, then keep
watching both files. Saving either file runs the analysis again; the resume is
only uploaded again when the resume itself changed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchOpts   analyzeOptions
	watchOutput common.CommandConfig
)

func init() {
	watchCmd.Flags().StringVar(&watchOpts.Title, "title", "", "Job title")
	watchCmd.Flags().StringVar(&watchOpts.Company, "company", "", "Company name")
	watchCmd.Flags().StringVar(&watchOpts.DescriptionFile, "description-file", "", "File containing the job description")
	watchCmd.Flags().BoolVar(&watchOpts.Preflight, "preflight", false, "Extract text locally and reject files without text before uploading")
	if err := watchCmd.MarkFlagRequired("description-file"); err != nil {
		panic(err)
	}
	outputFlags(watchCmd, &watchOutput)
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := clientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cc, err := resolveOutput(c.cfg, watchOutput)
	if err != nil {
		return err
	}

	ws, err := newWatchSession(c, args[0], watchOpts, cc)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	_ = ws.run(ctx, nil)

	w, err := watcher.New([]string{ws.resume, ws.opts.DescriptionFile}, c.cfg.Watch.DebounceDelay,
		func(changed []string) { _ = ws.run(ctx, changed) }, c.logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s and %s (press Ctrl+C to stop)\n",
		ws.resume, ws.opts.DescriptionFile)
	<-ctx.Done()
	return nil
}

// watchSession keeps one workflow session alive across re-analyses
type watchSession struct {
	c      *client
	resume string
	opts   analyzeOptions
	cc     common.CommandConfig

	mu sync.Mutex
	st session.State
}

func newWatchSession(c *client, resume string, opts analyzeOptions, cc common.CommandConfig) (*watchSession, error) {
	abs, err := filepath.Abs(resume)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", resume, err)
	}
	return &watchSession{c: c, resume: abs, opts: opts, cc: cc, st: session.New()}, nil
}

// run re-analyzes after a change. The resume is uploaded on the first run
// and whenever it is among the changed files. Failures are logged and the
// session keeps its last good state.
func (ws *watchSession) run(ctx context.Context, changed []string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	err := ws.analyze(ctx, changed)
	ws.c.om.RecordWatchRun(ctx, err == nil)
	if err != nil {
		ws.c.logger.LogError(err, "Watch run failed", "resume", ws.resume)
	}
	return err
}

func (ws *watchSession) analyze(ctx context.Context, changed []string) error {
	if !ws.st.Uploaded || slices.Contains(changed, ws.resume) {
		doc, err := ws.c.files.LoadDocument(ws.resume)
		if err != nil {
			return err
		}
		if ws.opts.Preflight {
			if _, err := ws.c.files.Preflight(doc); err != nil {
				return err
			}
		}
		next, _, err := ws.c.controller.UploadResume(ctx, ws.st, doc)
		if err != nil {
			return err
		}
		ws.st = next
	}

	req, err := ws.c.jobRequest(ctx, &ws.st, ws.opts)
	if err != nil {
		return err
	}
	report, err := ws.c.runAnalysis(ctx, ws.st, req)
	if err != nil {
		return err
	}
	return ws.c.output.HandleOutput(report, ws.cc)
}
