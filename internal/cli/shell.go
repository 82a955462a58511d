package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"resumefit/internal/common"
	"resumefit/internal/errors"
	"resumefit/internal/render"
	"resumefit/internal/session"
	"resumefit/internal/types"
	"resumefit/internal/workflow"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive analysis session",
	Long: `Start an interactive session that keeps the uploaded resume between commands.
Upload a resume once, then analyze it against as many job descriptions as you
like. Type "help" inside the shell for the list of commands.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

var shellFormat string

func init() {
	shellCmd.Flags().StringVarP(&shellFormat, "format", "f", "", "Output format: json, text, markdown (default from config)")
}

const shellPrompt = "resumefit> "

const shellHelp = `Commands:
  upload <file>             Upload a resume
  title <text>              Set the job title
  company <text>            Set the company
  description <text>        Set the job description
  description-file <file>   Read the job description from a file
  sample                    Fill the job fields from a random sample job
  analyze                   Analyze the uploaded resume against the job
  history                   Show the most recent analyses
  status                    Show the session state
  help                      Show this help
  quit                      Leave the shell
`

func runShell(cmd *cobra.Command, args []string) error {
	c, err := clientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cc, err := resolveOutput(c.cfg, common.CommandConfig{OutputFormat: shellFormat})
	if err != nil {
		return err
	}
	return newShell(c, cc, cmd.InOrStdin(), cmd.OutOrStdout()).run(cmd.Context())
}

// shell is an interactive session over one workflow state
type shell struct {
	c   *client
	cc  common.CommandConfig
	in  io.Reader
	out io.Writer

	st      session.State
	form    types.AnalysisRequest
	pending *workflow.HistoryRefresh
}

func newShell(c *client, cc common.CommandConfig, in io.Reader, out io.Writer) *shell {
	cc.OutputFile = ""
	return &shell{c: c, cc: cc, in: in, out: out, st: session.New()}
}

// run reads commands until quit, end of input or ctx is done
func (s *shell) run(ctx context.Context) error {
	s.st = s.c.controller.Bootstrap(ctx, s.st)
	s.printf("Type \"help\" for the list of commands.\n")

	scanner := bufio.NewScanner(s.in)
	for {
		s.applyPending()
		s.printf(shellPrompt)
		if !scanner.Scan() {
			s.printf("\n")
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if quit := s.exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit
func (s *shell) exec(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToLower(name) {
	case "":
	case "quit", "exit":
		return true
	case "help":
		s.printf(shellHelp)
	case "upload":
		err = s.upload(ctx, arg)
	case "title":
		s.form.JobTitle = arg
	case "company":
		s.form.Company = arg
	case "description":
		s.form.JobDescription = arg
	case "description-file":
		err = s.descriptionFile(arg)
	case "sample":
		err = s.sample(ctx)
	case "analyze":
		err = s.analyze(ctx)
	case "history":
		err = s.history(ctx)
	case "status":
		s.status()
	default:
		s.printf("Unknown command %q, type \"help\" for the list of commands.\n", name)
	}

	if err != nil {
		s.printf("Error: %s\n", errors.UserMessage(err))
	}
	return false
}

func (s *shell) upload(ctx context.Context, path string) error {
	if path == "" {
		return errors.NewValidationError(errors.ErrCodeMissingDocument, workflow.MsgNoFileSelected, nil)
	}
	doc, err := s.c.files.LoadDocument(path)
	if err != nil {
		return err
	}
	next, result, err := s.c.controller.UploadResume(ctx, s.st, doc)
	if err != nil {
		return err
	}
	s.st = next
	return s.c.output.HandleOutput(render.Upload(*result), s.cc)
}

func (s *shell) descriptionFile(path string) error {
	text, err := s.c.files.ReadText(path)
	if err != nil {
		return err
	}
	s.form.JobDescription = text
	return nil
}

// sample replaces the job fields with a random sample job
func (s *shell) sample(ctx context.Context) error {
	s.st = s.c.controller.LoadSampleJobs(ctx, s.st)
	job, err := s.c.controller.PickRandomSampleJob(s.st)
	if err != nil {
		return err
	}
	s.form = types.AnalysisRequest{
		JobTitle:       job.Title,
		Company:        job.Company,
		JobDescription: job.Description,
	}
	s.printf("Loaded sample job: %s\n", render.Position(job.Title, job.Company))
	return nil
}

// analyze prints the result right away; the history refresh it starts is
// folded into the session before the next prompt once it has finished.
func (s *shell) analyze(ctx context.Context) error {
	result, refresh, err := s.c.controller.AnalyzeResume(ctx, s.st, s.form)
	if err != nil {
		return err
	}
	s.c.om.RecordScore(ctx, result.Analysis.ATSScore.Int())
	s.pending = refresh
	return s.c.output.HandleOutput(render.Analysis(*result), s.cc)
}

func (s *shell) history(ctx context.Context) error {
	next, changed := s.c.controller.LoadHistory(ctx, s.st)
	if !changed {
		return nil
	}
	s.st = next
	view, ok := render.History(s.st.History, s.c.history)
	if !ok {
		return nil
	}
	return s.c.output.HandleOutput(view, s.cc)
}

func (s *shell) status() {
	s.printf("State: %s\n", s.st.Phase())
	if s.st.Uploaded {
		s.printf("Resume: %s (%d skills)\n", s.st.Filename, len(s.st.Skills))
	}
	if s.st.SampleJobsLoaded {
		s.printf("Sample jobs: %d\n", len(s.st.SampleJobs))
	}
	s.printf("History rows: %d\n", len(s.st.History))
	if s.form.JobTitle != "" || s.form.Company != "" {
		s.printf("Job: %s\n", render.Position(s.form.JobTitle, s.form.Company))
	}
	s.printf("Description: %d characters\n", len([]rune(strings.TrimSpace(s.form.JobDescription))))
}

// applyPending folds a finished history refresh into the session
func (s *shell) applyPending() {
	if s.pending == nil {
		return
	}
	select {
	case <-s.pending.Done():
		s.st, _ = s.pending.Apply(s.st)
		s.pending = nil
	default:
	}
}

func (s *shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
