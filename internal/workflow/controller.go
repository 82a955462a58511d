// Package workflow drives the upload, analyze and history cycle.
//
// The Controller owns no session data. Every operation takes the current
// session.State and returns the next one, so callers decide where state
// lives and how writes are serialized. The Controller does own one
// in-flight flag per user-triggered operation kind: a second upload (or
// analysis) started while one is outstanding is rejected with a busy error
// instead of racing the first.
package workflow

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"resumefit/internal/errors"
	"resumefit/internal/session"
	"resumefit/internal/types"
)

// Operation names a workflow operation for logs and telemetry
type Operation string

const (
	OpUpload     Operation = "upload"
	OpAnalyze    Operation = "analyze"
	OpSampleJobs Operation = "sample_jobs"
	OpHistory    Operation = "history"
)

// User-facing messages
const (
	MsgUploadFirst        = "Please upload a resume first"
	MsgEnterDescription   = "Please enter a job description"
	MsgNoFileSelected     = "No file selected"
	MsgUploadInProgress   = "An upload is already in progress"
	MsgAnalyzeInProgress  = "An analysis is already in progress"
	MsgNoSampleJobs       = "No sample jobs available"
	uploadErrorPrefix     = "Error uploading file: "
	analyzeErrorPrefix    = "Error analyzing resume: "
	backgroundFetchFailed = "Background fetch failed"
)

// ErrNoSampleJobs is returned when a random sample job is requested from an empty list
var ErrNoSampleJobs = errors.NewValidationError(errors.ErrCodeNoSampleJobs, MsgNoSampleJobs, nil)

// Backend is the analysis service the controller talks to
type Backend interface {
	Upload(ctx context.Context, doc types.Document) (*types.UploadResult, error)
	SampleJobs(ctx context.Context) ([]types.SampleJob, error)
	Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error)
	History(ctx context.Context) ([]types.HistoryEntry, error)
}

// DocumentValidator checks a document before it is uploaded
type DocumentValidator interface {
	ValidateDocument(doc types.Document) error
}

// Telemetry receives operation outcomes. Background failures are reported
// here as well as logged, never surfaced to the user.
type Telemetry interface {
	OperationCompleted(ctx context.Context, op Operation, duration time.Duration, err error)
	BackgroundFailure(ctx context.Context, op Operation, err error)
}

// NopTelemetry discards everything
type NopTelemetry struct{}

func (NopTelemetry) OperationCompleted(context.Context, Operation, time.Duration, error) {}
func (NopTelemetry) BackgroundFailure(context.Context, Operation, error)                 {}

// Controller runs workflow operations against a Backend
type Controller struct {
	backend   Backend
	validator DocumentValidator
	logger    *errors.Logger
	telemetry Telemetry
	intn      func(n int) int

	uploading atomic.Bool
	analyzing atomic.Bool
}

// Option customizes a Controller
type Option func(*Controller)

// WithTelemetry installs a telemetry collaborator
func WithTelemetry(t Telemetry) Option {
	return func(c *Controller) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// WithDocumentValidator checks documents before they are uploaded
func WithDocumentValidator(v DocumentValidator) Option {
	return func(c *Controller) {
		c.validator = v
	}
}

// WithRandom replaces the random index source used for sample jobs
func WithRandom(intn func(n int) int) Option {
	return func(c *Controller) {
		if intn != nil {
			c.intn = intn
		}
	}
}

// NewController creates a workflow controller
func NewController(backend Backend, logger *errors.Logger, opts ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		logger:    logger,
		telemetry: NopTelemetry{},
		intn:      rand.IntN,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadResume uploads doc. On success the returned state is ResumeUploaded
// and caches the filename and extracted skills; on failure st is returned
// unchanged.
func (c *Controller) UploadResume(ctx context.Context, st session.State, doc types.Document) (session.State, *types.UploadResult, error) {
	if strings.TrimSpace(doc.Name) == "" {
		return st, nil, errors.NewValidationError(errors.ErrCodeMissingDocument, MsgNoFileSelected, nil)
	}
	if c.validator != nil {
		if err := c.validator.ValidateDocument(doc); err != nil {
			return st, nil, err
		}
	}

	if !c.uploading.CompareAndSwap(false, true) {
		return st, nil, errors.NewBusyError(errors.ErrCodeInFlight, MsgUploadInProgress, nil).
			WithContext("operation", string(OpUpload))
	}
	defer c.uploading.Store(false)

	start := time.Now()
	result, err := c.backend.Upload(ctx, doc)
	c.telemetry.OperationCompleted(ctx, OpUpload, time.Since(start), err)
	if err != nil {
		c.logger.LogError(err, "Resume upload failed", "filename", doc.Name)
		return st, nil, userFacing(err, uploadErrorPrefix)
	}

	c.logger.Info("Resume uploaded",
		"filename", result.Filename,
		"skills", len(result.Skills))
	return st.WithUpload(*result), result, nil
}

// AnalyzeResume compares the uploaded resume against req. It fails without
// contacting the backend when no resume has been uploaded or the job
// description is blank. On success a history refresh is started in the
// background and returned without being awaited.
func (c *Controller) AnalyzeResume(ctx context.Context, st session.State, req types.AnalysisRequest) (*types.AnalysisResult, *HistoryRefresh, error) {
	if !st.Uploaded {
		return nil, nil, errors.NewPreconditionError(errors.ErrCodeNotReady, MsgUploadFirst, nil)
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, nil, errors.NewValidationError(errors.ErrCodeMissingJobDescription, MsgEnterDescription, nil)
	}

	if !c.analyzing.CompareAndSwap(false, true) {
		return nil, nil, errors.NewBusyError(errors.ErrCodeInFlight, MsgAnalyzeInProgress, nil).
			WithContext("operation", string(OpAnalyze))
	}
	defer c.analyzing.Store(false)

	start := time.Now()
	result, err := c.backend.Analyze(ctx, req)
	c.telemetry.OperationCompleted(ctx, OpAnalyze, time.Since(start), err)
	if err != nil {
		c.logger.LogError(err, "Resume analysis failed", "job_title", req.JobTitle)
		return nil, nil, userFacing(err, analyzeErrorPrefix)
	}

	c.logger.Info("Resume analyzed",
		"job_title", result.JobTitle,
		"company", result.Company,
		"ats_score", result.Analysis.ATSScore.Int())

	return result, c.refreshHistory(context.WithoutCancel(ctx)), nil
}

// LoadSampleJobs fetches the sample jobs once. Failures are logged and
// reported to telemetry only; the state is returned unchanged.
func (c *Controller) LoadSampleJobs(ctx context.Context, st session.State) session.State {
	if st.SampleJobsLoaded {
		return st
	}

	start := time.Now()
	jobs, err := c.backend.SampleJobs(ctx)
	c.telemetry.OperationCompleted(ctx, OpSampleJobs, time.Since(start), err)
	if err != nil {
		c.backgroundFailure(ctx, OpSampleJobs, errors.ErrCodeSampleJobsFailed, err)
		return st
	}

	c.logger.Debug("Sample jobs loaded", "count", len(jobs))
	return st.WithSampleJobs(jobs)
}

// LoadHistory fetches the analysis history. It reports true when the
// returned state holds a new, non-empty history that should be rendered.
// Failures and empty lists leave st unchanged.
func (c *Controller) LoadHistory(ctx context.Context, st session.State) (session.State, bool) {
	entries, err := c.fetchHistory(ctx)
	if err != nil {
		return st, false
	}
	return st.WithHistory(entries)
}

// PickRandomSampleJob returns one cached sample job chosen uniformly
func (c *Controller) PickRandomSampleJob(st session.State) (types.SampleJob, error) {
	if len(st.SampleJobs) == 0 {
		return types.SampleJob{}, ErrNoSampleJobs
	}
	return st.SampleJobs[c.intn(len(st.SampleJobs))], nil
}

// Bootstrap runs the sample job and history loads concurrently and merges
// their results into st.
func (c *Controller) Bootstrap(ctx context.Context, st session.State) session.State {
	var (
		wg             sync.WaitGroup
		jobsSt, histSt session.State
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		jobsSt = c.LoadSampleJobs(ctx, st)
	}()
	go func() {
		defer wg.Done()
		histSt, _ = c.LoadHistory(ctx, session.New())
	}()
	wg.Wait()

	return st.Merge(jobsSt).Merge(histSt)
}

func (c *Controller) fetchHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	start := time.Now()
	entries, err := c.backend.History(ctx)
	c.telemetry.OperationCompleted(ctx, OpHistory, time.Since(start), err)
	if err != nil {
		c.backgroundFailure(ctx, OpHistory, errors.ErrCodeHistoryFailed, err)
		return nil, err
	}
	c.logger.Debug("History loaded", "count", len(entries))
	return entries, nil
}

func (c *Controller) backgroundFailure(ctx context.Context, op Operation, code string, err error) {
	wrapped := errors.NewBackgroundError(code, errors.UserMessage(err), err).
		WithContext("operation", string(op))
	c.logger.LogError(wrapped, backgroundFetchFailed)
	c.telemetry.BackgroundFailure(ctx, op, wrapped)
}

// userFacing prefixes transport failures the way they are shown to users.
// Messages the backend itself returned are passed through verbatim.
func userFacing(err error, prefix string) error {
	appErr, ok := errors.As(err)
	if ok && appErr.Code == errors.ErrCodeBackendRejected {
		return err
	}
	code := errors.ErrCodeBackendUnreachable
	if ok {
		code = appErr.Code
	}
	return errors.NewTransportError(code, prefix+errors.UserMessage(err), err)
}
