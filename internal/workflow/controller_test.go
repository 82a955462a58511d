package workflow

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumefit/internal/backend"
	"resumefit/internal/backend/fakebackend"
	"resumefit/internal/config"
	"resumefit/internal/errors"
	"resumefit/internal/presenter"
	"resumefit/internal/render"
	"resumefit/internal/session"
	"resumefit/internal/types"
)

type recordedFailure struct {
	op  Operation
	err error
}

type fakeTelemetry struct {
	mu         sync.Mutex
	completed  map[Operation]int
	background []recordedFailure
}

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{completed: make(map[Operation]int)}
}

func (f *fakeTelemetry) OperationCompleted(_ context.Context, op Operation, _ time.Duration, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[op]++
}

func (f *fakeTelemetry) BackgroundFailure(_ context.Context, op Operation, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.background = append(f.background, recordedFailure{op: op, err: err})
}

func (f *fakeTelemetry) failures() []recordedFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedFailure(nil), f.background...)
}

// countingBackend records every call that would reach the network
type countingBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *countingBackend) hit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
}

func (b *countingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *countingBackend) Upload(context.Context, types.Document) (*types.UploadResult, error) {
	b.hit()
	return &types.UploadResult{Filename: "cv.txt"}, nil
}

func (b *countingBackend) SampleJobs(context.Context) ([]types.SampleJob, error) {
	b.hit()
	return nil, nil
}

func (b *countingBackend) Analyze(context.Context, types.AnalysisRequest) (*types.AnalysisResult, error) {
	b.hit()
	return &types.AnalysisResult{}, nil
}

func (b *countingBackend) History(context.Context) ([]types.HistoryEntry, error) {
	b.hit()
	return nil, nil
}

func newFakeController(t *testing.T, opts ...Option) (*Controller, *fakebackend.Server) {
	t.Helper()
	fake := fakebackend.New()
	t.Cleanup(fake.Close)

	client := backend.New(config.BackendConfig{
		BaseURL: fake.URL,
		Timeout: 5 * time.Second,
	}, errors.Discard())
	return NewController(client, errors.Discard(), opts...), fake
}

func uploadDoc(text string) types.Document {
	return types.Document{Name: "resume.txt", Content: []byte(text)}
}

func TestUploadThenAnalyzeEndToEnd(t *testing.T) {
	ctrl, fake := newFakeController(t)
	ctx := context.Background()

	st, up, err := ctrl.UploadResume(ctx, session.New(), uploadDoc("Senior engineer: Python, SQL"))
	require.NoError(t, err)
	assert.Equal(t, session.PhaseResumeUploaded, st.Phase())
	assert.Equal(t, "resume.txt", st.Filename)
	assert.Equal(t, []string{"Python", "SQL"}, up.Skills)

	result, refresh, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{
		JobTitle:       "Data Engineer",
		Company:        "Acme",
		JobDescription: "We need Python and AWS",
	})
	require.NoError(t, err)
	require.NotNil(t, refresh)

	view := render.Analysis(*result)
	assert.Equal(t, 50, view.Score)
	assert.Equal(t, presenter.BucketAverage, view.Bucket.Name)
	assert.Equal(t, []string{"Python"}, view.Matching.Tags)
	assert.Equal(t, []string{"AWS"}, view.Missing.Tags)
	assert.Equal(t, "Data Engineer at Acme", view.Position)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, refresh.Wait(ctx2))

	next, changed := refresh.Apply(st)
	require.True(t, changed)
	require.Len(t, next.History, 1)
	assert.Equal(t, 50, next.History[0].ATSScore.Int())
	assert.Equal(t, 1, fake.Calls("/history"))
}

func TestAnalyzeBeforeUploadMakesNoRequest(t *testing.T) {
	b := &countingBackend{}
	ctrl := NewController(b, errors.Discard())

	_, refresh, err := ctrl.AnalyzeResume(context.Background(), session.New(), types.AnalysisRequest{JobDescription: "Go"})
	require.Error(t, err)
	assert.Nil(t, refresh)
	assert.True(t, errors.IsType(err, errors.ErrorTypePrecondition))
	assert.Equal(t, MsgUploadFirst, errors.UserMessage(err))
	assert.Zero(t, b.count())
}

func TestAnalyzeBlankDescriptionMakesNoRequest(t *testing.T) {
	b := &countingBackend{}
	ctrl := NewController(b, errors.Discard())
	st := session.New().WithUpload(types.UploadResult{Filename: "cv.txt"})

	for _, desc := range []string{"", "   ", "\n\t "} {
		_, _, err := ctrl.AnalyzeResume(context.Background(), st, types.AnalysisRequest{JobTitle: "Dev", JobDescription: desc})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		assert.Equal(t, MsgEnterDescription, errors.UserMessage(err))
	}
	assert.Zero(t, b.count())
}

func TestUploadRejectsMissingName(t *testing.T) {
	b := &countingBackend{}
	ctrl := NewController(b, errors.Discard())

	st, _, err := ctrl.UploadResume(context.Background(), session.New(), types.Document{Content: []byte("x")})
	require.Error(t, err)
	assert.Equal(t, session.PhaseNotReady, st.Phase())
	assert.Zero(t, b.count())
}

type rejectAll struct{}

func (rejectAll) ValidateDocument(types.Document) error {
	return errors.NewValidationError(errors.ErrCodeInvalidFileType, "nope", nil)
}

func TestUploadRunsDocumentValidator(t *testing.T) {
	b := &countingBackend{}
	ctrl := NewController(b, errors.Discard(), WithDocumentValidator(rejectAll{}))

	_, _, err := ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Go"))
	assert.Equal(t, "nope", errors.UserMessage(err))
	assert.Zero(t, b.count())
}

func TestUploadFailureKeepsState(t *testing.T) {
	ctrl, fake := newFakeController(t)
	fake.Override("/upload", http.StatusBadRequest, `{"error":"Invalid file type. Please upload PDF, DOCX, or TXT files."}`)

	st, result, err := ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Go"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, st.Uploaded)
	assert.Equal(t, "Invalid file type. Please upload PDF, DOCX, or TXT files.", errors.UserMessage(err))
}

func TestUploadTransportFailureIsPrefixed(t *testing.T) {
	ctrl, fake := newFakeController(t)
	fake.Override("/upload", http.StatusOK, `not json`)

	_, _, err := ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Go"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
	assert.Contains(t, errors.UserMessage(err), "Error uploading file: ")
}

func TestAnalyzeFailureKeepsUploadedState(t *testing.T) {
	ctrl, fake := newFakeController(t)
	ctx := context.Background()

	st, _, err := ctrl.UploadResume(ctx, session.New(), uploadDoc("Python"))
	require.NoError(t, err)

	fake.Override("/analyze", http.StatusInternalServerError, `{"error":"Error analyzing resume: boom"}`)
	_, refresh, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobDescription: "Python"})
	require.Error(t, err)
	assert.Nil(t, refresh)
	assert.Equal(t, "Error analyzing resume: boom", errors.UserMessage(err))
	assert.Equal(t, session.PhaseResumeUploaded, st.Phase())
	assert.Zero(t, fake.Calls("/history"))
}

func TestAnalyzeSendsFieldsAsEntered(t *testing.T) {
	ctrl, _ := newFakeController(t)
	ctx := context.Background()

	st, _, err := ctrl.UploadResume(ctx, session.New(), uploadDoc("Go"))
	require.NoError(t, err)

	result, _, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobTitle: "", Company: "", JobDescription: "  Go  "})
	require.NoError(t, err)
	assert.Equal(t, "", result.JobTitle)
	assert.Equal(t, "", result.Company)
	assert.Equal(t, 100, result.Analysis.ATSScore.Int())
}

func TestConcurrentUploadIsRejected(t *testing.T) {
	ctrl, fake := newFakeController(t)
	release := fake.Hold("/upload")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, _, err := ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Go"))
		done <- err
	}()

	require.Eventually(t, func() bool { return fake.Calls("/upload") == 1 }, 5*time.Second, 10*time.Millisecond)

	_, _, err := ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Python"))
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeBusy, appErr.Type)
	assert.Equal(t, errors.ErrCodeInFlight, appErr.Code)
	assert.Equal(t, 1, fake.Calls("/upload"))

	release()
	require.NoError(t, <-done)

	// the guard is released once the first call returns
	_, _, err = ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Python"))
	assert.NoError(t, err)
}

func TestConcurrentAnalyzeIsRejected(t *testing.T) {
	ctrl, fake := newFakeController(t)
	ctx := context.Background()
	st, _, err := ctrl.UploadResume(ctx, session.New(), uploadDoc("Go"))
	require.NoError(t, err)

	release := fake.Hold("/analyze")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, _, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobDescription: "Go"})
		done <- err
	}()
	require.Eventually(t, func() bool { return fake.Calls("/analyze") == 1 }, 5*time.Second, 10*time.Millisecond)

	_, _, err = ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobDescription: "Go"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeBusy))

	// an upload is a different operation kind and is not blocked
	_, _, err = ctrl.UploadResume(ctx, st, uploadDoc("Go"))
	assert.NoError(t, err)

	release()
	require.NoError(t, <-done)
}

func TestLoadSampleJobsOnce(t *testing.T) {
	ctrl, fake := newFakeController(t)
	ctx := context.Background()

	st := ctrl.LoadSampleJobs(ctx, session.New())
	assert.True(t, st.SampleJobsLoaded)
	assert.Equal(t, fakebackend.DefaultSampleJobs, st.SampleJobs)

	assert.Equal(t, st, ctrl.LoadSampleJobs(ctx, st))
	assert.Equal(t, 1, fake.Calls("/sample-jobs"))
}

func TestBackgroundFailuresAreLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	tel := newFakeTelemetry()
	fake := fakebackend.New()
	defer fake.Close()
	client := backend.New(config.BackendConfig{BaseURL: fake.URL, Timeout: 5 * time.Second}, errors.Discard())
	ctrl := NewController(client, errors.NewLoggerWithWriter(&buf, slog.LevelDebug), WithTelemetry(tel))

	fake.Override("/sample-jobs", http.StatusInternalServerError, `{"error":"db down"}`)
	fake.Override("/history", http.StatusOK, `{"history": "nope"}`)

	prior := session.New()
	prior.History = []types.HistoryEntry{{Filename: "old.pdf"}}

	st := ctrl.LoadSampleJobs(context.Background(), prior)
	assert.False(t, st.SampleJobsLoaded)

	st, changed := ctrl.LoadHistory(context.Background(), st)
	assert.False(t, changed)
	assert.Equal(t, prior, st)

	failures := tel.failures()
	require.Len(t, failures, 2)
	assert.Equal(t, OpSampleJobs, failures[0].op)
	assert.Equal(t, OpHistory, failures[1].op)
	assert.True(t, errors.IsType(failures[0].err, errors.ErrorTypeBackground))
	assert.Contains(t, buf.String(), backgroundFetchFailed)
}

func TestLoadHistoryEmptyLeavesState(t *testing.T) {
	ctrl, _ := newFakeController(t)

	prior := session.New()
	prior.History = []types.HistoryEntry{{Filename: "old.pdf"}}

	st, changed := ctrl.LoadHistory(context.Background(), prior)
	assert.False(t, changed)
	assert.Equal(t, prior.History, st.History)
}

func TestHistoryRefreshFailureIsBackground(t *testing.T) {
	tel := newFakeTelemetry()
	ctrl, fake := newFakeController(t, WithTelemetry(tel))
	ctx := context.Background()

	st, _, err := ctrl.UploadResume(ctx, session.New(), uploadDoc("Go"))
	require.NoError(t, err)

	fake.Override("/history", http.StatusInternalServerError, `{"error":"db down"}`)
	result, refresh, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobDescription: "Go"})
	require.NoError(t, err)
	require.NotNil(t, result)

	<-refresh.Done()
	_, ok := refresh.Result()
	assert.False(t, ok)

	next, changed := refresh.Apply(st)
	assert.False(t, changed)
	assert.Equal(t, st, next)
	require.Len(t, tel.failures(), 1)
}

func TestHistoryRefreshOutlivesCaller(t *testing.T) {
	ctrl, fake := newFakeController(t)
	st, _, err := ctrl.UploadResume(context.Background(), session.New(), uploadDoc("Go"))
	require.NoError(t, err)

	release := fake.Hold("/history")
	ctx, cancel := context.WithCancel(context.Background())
	_, refresh, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobDescription: "Go"})
	require.NoError(t, err)
	cancel()

	_, ok := refresh.Result()
	assert.False(t, ok)
	release()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, refresh.Wait(waitCtx))
	_, ok = refresh.Result()
	assert.True(t, ok)
}

func TestPickRandomSampleJob(t *testing.T) {
	ctrl := NewController(&countingBackend{}, errors.Discard(), WithRandom(func(n int) int { return n - 1 }))

	_, err := ctrl.PickRandomSampleJob(session.New())
	assert.ErrorIs(t, err, ErrNoSampleJobs)

	st := session.New().WithSampleJobs(fakebackend.DefaultSampleJobs)
	job, err := ctrl.PickRandomSampleJob(st)
	require.NoError(t, err)
	assert.Equal(t, fakebackend.DefaultSampleJobs[len(fakebackend.DefaultSampleJobs)-1], job)
}

func TestPickRandomSampleJobCoversList(t *testing.T) {
	ctrl := NewController(&countingBackend{}, errors.Discard())
	st := session.New().WithSampleJobs(fakebackend.DefaultSampleJobs)

	seen := make(map[string]bool)
	for range 200 {
		job, err := ctrl.PickRandomSampleJob(st)
		require.NoError(t, err)
		seen[job.Title] = true
	}
	assert.Len(t, seen, len(fakebackend.DefaultSampleJobs))
}

func TestBootstrap(t *testing.T) {
	ctrl, fake := newFakeController(t)
	ctx := context.Background()

	st, _, err := ctrl.UploadResume(ctx, session.New(), uploadDoc("Go"))
	require.NoError(t, err)
	_, refresh, err := ctrl.AnalyzeResume(ctx, st, types.AnalysisRequest{JobDescription: "Go"})
	require.NoError(t, err)
	<-refresh.Done()

	boot := ctrl.Bootstrap(ctx, st)
	assert.True(t, boot.Uploaded)
	assert.True(t, boot.SampleJobsLoaded)
	assert.Len(t, boot.History, 1)

	again := ctrl.Bootstrap(ctx, boot)
	assert.Equal(t, boot.SampleJobs, again.SampleJobs)
	assert.Equal(t, 1, fake.Calls("/sample-jobs"))
}
