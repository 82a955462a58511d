package cli

import (
	"context"
	"strings"

	"resumefit/internal/common"
	"resumefit/internal/errors"
	"resumefit/internal/render"
	"resumefit/internal/session"
	"resumefit/internal/types"
	"resumefit/internal/workflow"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [resume-file]",
	Short: "Analyze a resume against a job description",
	Long: `Upload a resume and compare it against a job description. The result shows
the ATS compatibility score, matching and missing skills, recommendations and
the most recent analyses.

The job description comes from --description, --description-file or, with
--sample, from a random sample job of the service. Explicit flags override the
fields of the sample job.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// analyzeOptions describes the job a resume is analyzed against
type analyzeOptions struct {
	Title           string
	Company         string
	Description     string
	DescriptionFile string
	Sample          bool
	Preflight       bool
}

var (
	analyzeOpts   analyzeOptions
	analyzeOutput common.CommandConfig
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOpts.Title, "title", "", "Job title")
	analyzeCmd.Flags().StringVar(&analyzeOpts.Company, "company", "", "Company name")
	analyzeCmd.Flags().StringVarP(&analyzeOpts.Description, "description", "d", "", "Job description text")
	analyzeCmd.Flags().StringVar(&analyzeOpts.DescriptionFile, "description-file", "", "File containing the job description")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.Sample, "sample", false, "Use a random sample job from the service")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.Preflight, "preflight", false, "Extract text locally and reject files without text before uploading")
	analyzeCmd.MarkFlagsMutuallyExclusive("description", "description-file")
	outputFlags(analyzeCmd, &analyzeOutput)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	c, err := clientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cc, err := resolveOutput(c.cfg, analyzeOutput)
	if err != nil {
		return err
	}
	return c.analyze(cmd.Context(), args[0], analyzeOpts, cc)
}

func (c *client) analyze(ctx context.Context, path string, opts analyzeOptions, cc common.CommandConfig) error {
	st := session.New()
	req, err := c.jobRequest(ctx, &st, opts)
	if err != nil {
		return err
	}

	return common.RunDocumentCommand(ctx, c.logger, c.files, c.output, cc, path, opts.Preflight,
		func(ctx context.Context, doc types.Document) (render.Report, error) {
			uploaded, _, err := c.controller.UploadResume(ctx, st, doc)
			if err != nil {
				return render.Report{}, err
			}
			return c.runAnalysis(ctx, uploaded, req)
		})
}

// runAnalysis analyzes the uploaded resume of st and pairs the result with
// the history fetched right after it.
func (c *client) runAnalysis(ctx context.Context, st session.State, req types.AnalysisRequest) (render.Report, error) {
	result, refresh, err := c.controller.AnalyzeResume(ctx, st, req)
	if err != nil {
		return render.Report{}, err
	}
	c.om.RecordScore(ctx, result.Analysis.ATSScore.Int())

	history, ok := c.awaitHistory(ctx, refresh)
	return render.NewReport(render.Analysis(*result), history, ok), nil
}

// jobRequest assembles the analysis request from opts. A blank description
// is rejected here so that no upload is spent on a request that cannot run.
func (c *client) jobRequest(ctx context.Context, st *session.State, opts analyzeOptions) (types.AnalysisRequest, error) {
	req := types.AnalysisRequest{
		JobTitle:       opts.Title,
		Company:        opts.Company,
		JobDescription: opts.Description,
	}

	if opts.DescriptionFile != "" {
		text, err := c.files.ReadText(opts.DescriptionFile)
		if err != nil {
			return req, err
		}
		req.JobDescription = text
	}

	if opts.Sample {
		*st = c.controller.LoadSampleJobs(ctx, *st)
		job, err := c.controller.PickRandomSampleJob(*st)
		if err != nil {
			return req, err
		}
		c.logger.Info("Using sample job", "title", job.Title, "company", job.Company)
		req = fillFromSample(req, job)
	}

	if strings.TrimSpace(req.JobDescription) == "" {
		return req, errors.NewValidationError(errors.ErrCodeMissingJobDescription, workflow.MsgEnterDescription, nil)
	}
	return req, nil
}

// fillFromSample completes the blank fields of req from job
func fillFromSample(req types.AnalysisRequest, job types.SampleJob) types.AnalysisRequest {
	if req.JobTitle == "" {
		req.JobTitle = job.Title
	}
	if req.Company == "" {
		req.Company = job.Company
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		req.JobDescription = job.Description
	}
	return req
}
