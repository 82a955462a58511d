package cli

import (
	"context"

	"resumefit/internal/common"
	"resumefit/internal/errors"
	"resumefit/internal/render"
	"resumefit/internal/session"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent analyses",
	Long: `Show the most recent analyses recorded by the service, most recent first.
Nothing is printed when there are no analyses yet.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "List the sample jobs offered by the service",
	Args:  cobra.NoArgs,
	RunE:  runSamples,
}

var (
	historyOutput common.CommandConfig
	samplesOutput common.CommandConfig
	samplesRandom bool
)

func init() {
	outputFlags(historyCmd, &historyOutput)
	outputFlags(samplesCmd, &samplesOutput)
	samplesCmd.Flags().BoolVar(&samplesRandom, "random", false, "Print one random sample job")
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := clientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cc, err := resolveOutput(c.cfg, historyOutput)
	if err != nil {
		return err
	}
	return c.showHistory(cmd.Context(), cc)
}

func (c *client) showHistory(ctx context.Context, cc common.CommandConfig) error {
	st, changed := c.controller.LoadHistory(ctx, session.New())
	if !changed {
		c.logger.Debug("No history to show")
		return nil
	}
	view, ok := render.History(st.History, c.history)
	if !ok {
		return nil
	}
	return c.output.HandleOutput(view, cc)
}

func runSamples(cmd *cobra.Command, args []string) error {
	c, err := clientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cc, err := resolveOutput(c.cfg, samplesOutput)
	if err != nil {
		return err
	}
	return c.showSamples(cmd.Context(), samplesRandom, cc)
}

func (c *client) showSamples(ctx context.Context, random bool, cc common.CommandConfig) error {
	st := c.controller.LoadSampleJobs(ctx, session.New())
	if !st.SampleJobsLoaded {
		return errors.NewTransportError(errors.ErrCodeSampleJobsFailed, "Could not load sample jobs", nil)
	}

	if random {
		job, err := c.controller.PickRandomSampleJob(st)
		if err != nil {
			return err
		}
		return c.output.HandleOutput(job, cc)
	}
	return c.output.HandleOutput(st.SampleJobs, cc)
}
