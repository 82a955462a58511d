// Package backend talks to the resume analysis service over HTTP.
package backend

import (
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/cookiejar"

	"resumefit/internal/config"
	"resumefit/internal/errors"
	"resumefit/internal/types"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Endpoint names one backend operation
type Endpoint string

const (
	EndpointUpload     Endpoint = "upload"
	EndpointSampleJobs Endpoint = "sample_jobs"
	EndpointAnalyze    Endpoint = "analyze"
	EndpointHistory    Endpoint = "history"
)

var endpointPaths = map[Endpoint]string{
	EndpointUpload:     "/upload",
	EndpointSampleJobs: "/sample-jobs",
	EndpointAnalyze:    "/analyze",
	EndpointHistory:    "/history",
}

// UploadField is the multipart field carrying the resume
const UploadField = "resume"

// RequestIDHeader carries a per-request correlation id
const RequestIDHeader = "X-Request-ID"

var errServerFailure = stderrors.New("backend server failure")

// Client is one backend session. The backend links uploads and analyses
// through its session cookie, so a Client must not be shared between users.
type Client struct {
	http     *resty.Client
	breakers map[Endpoint]*Breaker
	logger   *errors.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithTransport replaces the HTTP transport, e.g. with a test server's
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.SetTransport(otelhttp.NewTransport(rt))
	}
}

// New creates a backend client with its own cookie jar
func New(cfg config.BackendConfig, logger *errors.Logger, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetCookieJar(jar).
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.AuthToken != "" {
		rc.SetAuthToken(cfg.AuthToken)
	}

	c := &Client{
		http:     rc,
		breakers: make(map[Endpoint]*Breaker, len(endpointPaths)),
		logger:   logger,
	}
	for endpoint := range endpointPaths {
		c.breakers[endpoint] = NewBreaker(endpoint, cfg.CircuitBreaker, logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends one resume document as multipart field "resume"
func (c *Client) Upload(ctx context.Context, doc types.Document) (*types.UploadResult, error) {
	var result types.UploadResult
	err := c.do(ctx, EndpointUpload, func(r *resty.Request) (*resty.Response, error) {
		return r.SetFileReader(UploadField, doc.Name, bytes.NewReader(doc.Content)).
			Post(endpointPaths[EndpointUpload])
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SampleJobs lists the canned job descriptions
func (c *Client) SampleJobs(ctx context.Context) ([]types.SampleJob, error) {
	var result types.SampleJobsResponse
	err := c.do(ctx, EndpointSampleJobs, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(endpointPaths[EndpointSampleJobs])
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// Analyze compares the uploaded resume of this session against a job description
func (c *Client) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResult, error) {
	var result types.AnalysisResult
	err := c.do(ctx, EndpointAnalyze, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post(endpointPaths[EndpointAnalyze])
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// History fetches the most recent analyses
func (c *Client) History(ctx context.Context) ([]types.HistoryEntry, error) {
	var result types.HistoryResponse
	err := c.do(ctx, EndpointHistory, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(endpointPaths[EndpointHistory])
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.History, nil
}

// do sends one request through the endpoint's breaker and decodes the body into out
func (c *Client) do(ctx context.Context, endpoint Endpoint, send func(*resty.Request) (*resty.Response, error), out any) error {
	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, requestID)

	resp, err := c.breakers[endpoint].Execute(func() (*resty.Response, error) {
		resp, err := send(req)
		if err != nil {
			return resp, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errServerFailure
		}
		return resp, nil
	})

	switch {
	case err == nil, stderrors.Is(err, errServerFailure):
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.NewTransportError(errors.ErrCodeCircuitOpen, "backend temporarily unavailable", err).
			WithContext("endpoint", string(endpoint))
	case ctx.Err() != nil:
		return errors.NewTransportError(errors.ErrCodeBackendUnreachable, "request canceled", ctx.Err()).
			WithContext("endpoint", string(endpoint))
	default:
		c.logger.Debug("Backend request failed", "endpoint", string(endpoint), "request_id", requestID, "error", err.Error())
		return errors.NewTransportError(errors.ErrCodeBackendUnreachable, "backend unreachable", err).
			WithContext("endpoint", string(endpoint))
	}

	c.logger.Debug("Backend response",
		"endpoint", string(endpoint),
		"request_id", requestID,
		"status", resp.StatusCode(),
		"duration_ms", resp.Time().Milliseconds())

	return decode(endpoint, resp.StatusCode(), resp.Body(), out)
}

// Stats returns circuit breaker statistics per endpoint
func (c *Client) Stats() map[string]any {
	stats := make(map[string]any, len(c.breakers))
	for endpoint, b := range c.breakers {
		stats[string(endpoint)] = b.GetStats()
	}
	return stats
}

// IsHealthy reports whether every endpoint breaker is closed
func (c *Client) IsHealthy() bool {
	for _, b := range c.breakers {
		if !b.IsHealthy() {
			return false
		}
	}
	return true
}
