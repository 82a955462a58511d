package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumefit/internal/backend/fakebackend"
	"resumefit/internal/config"
	"resumefit/internal/errors"
	"resumefit/internal/render"
	"resumefit/internal/types"
	"resumefit/internal/workflow"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.Timeout = 5 * time.Second
	cfg.App.AllowedExtensions = []string{"pdf", "docx", "txt"}
	cfg.App.MaxFileSize = 1 << 20
	cfg.App.DateLayout = "2006-01-02"
	cfg.App.Timezone = "UTC"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.TLS.Mode = "disabled"
	return cfg
}

type harness struct {
	fake   *fakebackend.Server
	server *Server
	http   *httptest.Server
}

func newHarness(t *testing.T, mutate func(*config.Config, *ServerConfig)) *harness {
	t.Helper()
	fake := fakebackend.New()
	t.Cleanup(fake.Close)

	cfg := testConfig(fake.URL)
	sc := ConfigFrom(cfg, "test")
	if mutate != nil {
		mutate(cfg, &sc)
	}

	s := NewServer(cfg, sc, errors.Discard())
	ts := httptest.NewServer(s.Handler(nil))
	t.Cleanup(func() {
		ts.Close()
		s.cleanup()
	})
	return &harness{fake: fake, server: s, http: ts}
}

// browser is one visitor with its own cookie jar
func (h *harness) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (h *harness) do(t *testing.T, c *http.Client, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (h *harness) upload(t *testing.T, c *http.Client, filename, content string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return h.do(t, c, req)
}

func (h *harness) analyze(t *testing.T, c *http.Client, body types.AnalysisRequest) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/analyze", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return h.do(t, c, req)
}

func (h *harness) get(t *testing.T, c *http.Client, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.http.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	return h.do(t, c, req)
}

func decodeError(t *testing.T, body []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func TestUploadAnalyzeHistoryFlow(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	resp, body := h.get(t, c, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Upload your resume")
	assert.Contains(t, string(body), `id="sample-job"`)

	resp, body = h.upload(t, c, "cv.txt", "Python and SQL developer")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var up render.UploadView
	require.NoError(t, json.Unmarshal(body, &up))
	assert.Equal(t, "cv.txt", up.Filename)
	assert.Equal(t, []string{"Python", "SQL"}, up.Skills)

	resp, body = h.analyze(t, c, types.AnalysisRequest{JobTitle: "Dev", Company: "Acme", JobDescription: "Python and AWS"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view render.AnalysisView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, 50, view.Score)
	assert.Equal(t, "Average Match", view.Bucket.Label)
	assert.Equal(t, "Dev at Acme", view.Position)

	resp, body = h.get(t, c, "/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history render.HistoryView
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history.Rows, 1)
	assert.Equal(t, "cv.txt", history.Rows[0].Filename)
	assert.Equal(t, "Dev", history.Rows[0].JobTitle)

	// the background refresh also lands in the visitor's cached state
	require.Eventually(t, func() bool {
		_, page := h.get(t, c, "/")
		return strings.Contains(string(page), "Current resume") && strings.Contains(string(page), "<table class=\"history\">")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAnalyzeSectionRevealedAfterUpload(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	_, body := h.get(t, c, "/")
	page := string(body)
	assert.Contains(t, page, `<section id="analyze-section" hidden>`)
	assert.Contains(t, page, `addEventListener("drop"`)
	assert.Contains(t, page, "uploadFile(e.dataTransfer.files[0])")
	assert.Contains(t, page, "scrollIntoView")

	resp, body := h.upload(t, c, "cv.txt", "Python developer")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	_, body = h.get(t, c, "/")
	assert.Contains(t, string(body), `<section id="analyze-section">`)

	// a fresh visitor still starts with the form hidden
	_, body = h.get(t, h.browser(t), "/")
	assert.Contains(t, string(body), `<section id="analyze-section" hidden>`)
}

func TestUploadReturnsHTMLFragmentByDefault(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("resume", "cv & co.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("Go and Docker"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body := h.do(t, c, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), render.UploadSuccessHeadline)
	assert.Contains(t, string(body), "cv &amp; co.txt")
}

func TestAnalyzeBeforeUploadMakesNoBackendCall(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	resp, body := h.analyze(t, c, types.AnalysisRequest{JobDescription: "Python"})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, workflow.MsgUploadFirst, decodeError(t, body).Error)
	assert.Equal(t, 0, h.fake.Calls("/analyze"))
}

func TestBlankDescriptionMakesNoBackendCall(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	resp, _ := h.upload(t, c, "cv.txt", "Python")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.analyze(t, c, types.AnalysisRequest{JobTitle: "Dev", JobDescription: " \n\t "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, workflow.MsgEnterDescription, decodeError(t, body).Error)
	assert.Equal(t, 0, h.fake.Calls("/analyze"))
}

func TestAnalyzeRequiresJSON(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	req, err := http.NewRequest(http.MethodPost, h.http.URL+"/analyze", strings.NewReader("job_description=x"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body := h.do(t, c, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidRequest, decodeError(t, body).Code)
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		status   int
		code     string
	}{
		{"no file", "", "", http.StatusBadRequest, errors.ErrCodeMissingDocument},
		{"bad extension", "cv.exe", "binary", http.StatusBadRequest, errors.ErrCodeInvalidFileType},
		{"empty file", "cv.txt", "", http.StatusBadRequest, errors.ErrCodeEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			resp, body := h.upload(t, h.browser(t), tt.filename, tt.content)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, body).Code)
			assert.Equal(t, 0, h.fake.Calls("/upload"))
		})
	}
}

func TestUploadRejectedByBackendPassesMessageThrough(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.Override("/upload", http.StatusBadRequest, `{"error": "Could not extract text from file"}`)

	resp, body := h.upload(t, h.browser(t), "cv.txt", "Python")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Could not extract text from file", decodeError(t, body).Error)
}

func TestUploadTooLarge(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, sc *ServerConfig) {
		sc.MaxRequestSize = 512
	})

	resp, body := h.upload(t, h.browser(t), "cv.txt", strings.Repeat("Python ", 200))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeFileTooLarge, decodeError(t, body).Code)
}

func TestVisitorsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.browser(t), h.browser(t)

	resp, _ := h.upload(t, alice, "alice.txt", "Python")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.analyze(t, bob, types.AnalysisRequest{JobDescription: "Python"})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp, _ = h.analyze(t, alice, types.AnalysisRequest{JobDescription: "Python"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, h.server.Visitors.Len())
}

func TestConcurrentAnalyzeIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	resp, _ := h.upload(t, c, "cv.txt", "Python")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	release := h.fake.Hold("/analyze")
	defer release()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, _ := h.analyze(t, c, types.AnalysisRequest{JobDescription: "Python"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}()

	require.Eventually(t, func() bool { return h.fake.Calls("/analyze") == 1 }, 2*time.Second, 5*time.Millisecond)

	resp, body := h.analyze(t, c, types.AnalysisRequest{JobDescription: "Python"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInFlight, decodeError(t, body).Code)

	release()
	wg.Wait()
	assert.Equal(t, 1, h.fake.Calls("/analyze"))
}

func TestEmptyHistoryAnswersNoContent(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.get(t, h.browser(t), "/history")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, body)
}

func TestSampleJob(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)

	resp, body := h.get(t, c, "/sample-job")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var job types.SampleJob
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Contains(t, fakebackend.DefaultSampleJobs, job)

	h.get(t, c, "/sample-job")
	assert.Equal(t, 1, h.fake.Calls("/sample-jobs"))
}

func TestSampleJobWithoutJobs(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.SetSampleJobs(nil)

	resp, body := h.get(t, h.browser(t), "/sample-job")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, workflow.MsgNoSampleJobs, decodeError(t, body).Error)
}

func TestPageSurvivesBackendOutage(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.Override("/sample-jobs", http.StatusInternalServerError, `oops`)
	h.fake.Override("/history", http.StatusInternalServerError, `oops`)

	resp, body := h.get(t, h.browser(t), "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body), `id="sample-job"`)
}

func TestAuthMiddleware(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, sc *ServerConfig) {
		sc.APIKeys = []string{"secret-key-123"}
	})
	c := h.browser(t)

	resp, _ := h.get(t, c, "/history")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, h.http.URL+"/history", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, _ = h.do(t, c, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, h.http.URL+"/history", nil)
	req.Header.Set("X-API-Key", "secret-key-123")
	resp, _ = h.do(t, c, req)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.get(t, c, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitMiddleware(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, sc *ServerConfig) {
		sc.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	})
	c := h.browser(t)

	resp, _ := h.get(t, c, "/history")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := h.get(t, c, "/history")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Rate limit exceeded", decodeError(t, body).Error)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(60, 2, errors.Discard())
	defer rl.Close()

	assert.True(t, rl.Allow("ip:1"))
	assert.True(t, rl.Allow("ip:1"))
	ok, wait := rl.Reserve("ip:1")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.True(t, rl.Allow("ip:2"))

	rl.evictIdle(-time.Second)
	assert.Equal(t, 0, rl.GetStats()["active_limiters"])
	assert.True(t, rl.Allow("ip:1"), "an evicted key starts with a full bucket")
}

func TestHealthAndStats(t *testing.T) {
	h := newHarness(t, nil)
	c := h.browser(t)
	h.get(t, c, "/sample-job")

	resp, body := h.get(t, c, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])

	resp, body = h.get(t, c, "/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(body, &stats))
	visitors, ok := stats["visitors"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, visitors["active_visitors"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errors.NewValidationError(errors.ErrCodeMissingDocument, "x", nil), http.StatusBadRequest},
		{errors.NewValidationError(errors.ErrCodeFileTooLarge, "x", nil), http.StatusRequestEntityTooLarge},
		{errors.NewPreconditionError(errors.ErrCodeNotReady, "x", nil), http.StatusPreconditionFailed},
		{errors.NewBusyError(errors.ErrCodeInFlight, "x", nil), http.StatusConflict},
		{errors.NewTransportError(errors.ErrCodeBackendUnreachable, "x", nil), http.StatusBadGateway},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}

type fakeGauge struct {
	mu    sync.Mutex
	total int64
}

func (g *fakeGauge) VisitorsChanged(_ context.Context, delta int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.total += delta
}

func TestVisitorManagerEviction(t *testing.T) {
	gauge := &fakeGauge{}
	m := NewVisitorManager(0, false, func() (*workflow.Controller, BackendStatus) {
		return workflow.NewController(nil, errors.Discard()), nil
	}, gauge, errors.Discard())
	defer m.Close()

	rec := httptest.NewRecorder()
	v, created := m.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, created)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	same, created := m.Get(httptest.NewRecorder(), req)
	assert.False(t, created)
	assert.Same(t, v, same)
	assert.EqualValues(t, 1, gauge.total)

	time.Sleep(time.Millisecond)
	m.cleanup(0)
	assert.Equal(t, 0, m.Len())
	assert.EqualValues(t, 0, gauge.total)

	_, created = m.Get(httptest.NewRecorder(), req)
	assert.True(t, created, "an evicted visitor starts over")
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-API-Key", "abc")

	keyType, key := getRateLimitKey(req, true, true)
	assert.Equal(t, "api_key", keyType)
	assert.Equal(t, "api:abc", key)

	keyType, key = getRateLimitKey(req, false, true)
	assert.Equal(t, "ip", keyType)
	assert.Equal(t, "ip:10.0.0.1", key)

	req.Header.Set("X-Forwarded-For", "bogus, 192.168.1.9")
	_, key = getRateLimitKey(req, false, true)
	assert.Equal(t, "ip:192.168.1.9", key)

	_, key = getRateLimitKey(req, false, false)
	assert.Empty(t, key)
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}
