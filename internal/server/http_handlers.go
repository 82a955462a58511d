package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"resumefit/internal/backend"
	"resumefit/internal/errors"
	"resumefit/internal/render"
	"resumefit/internal/session"
	"resumefit/internal/types"
	"resumefit/internal/utils"
)

// maxMultipartMemory is the part of an upload kept in memory; the rest
// spills to temporary files.
const maxMultipartMemory = 8 << 20

// historyApplyTimeout bounds how long a finished analysis waits for its
// history refresh before giving up on caching it.
const historyApplyTimeout = 30 * time.Second

type pageData struct {
	Version     string
	State       session.State
	History     *render.HistoryView
	Accept      string
	Extensions  string
	MaxFileSize string
}

// pageHandler serves the single page UI. Every visit reloads the history
// and loads the sample jobs once per visitor.
func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	v, _ := s.Visitors.Get(w, r)

	boot := v.Controller.Bootstrap(r.Context(), v.State())
	st := v.Update(func(cur session.State) session.State { return cur.Merge(boot) })

	data := pageData{
		Version:     s.Version,
		State:       st,
		Accept:      acceptList(s.AppConfig.App.AllowedExtensions),
		Extensions:  utils.DescribeExtensions(s.AppConfig.App.AllowedExtensions),
		MaxFileSize: utils.FormatFileSize(s.AppConfig.App.MaxFileSize),
	}
	if view, ok := render.History(st.History, s.History); ok {
		data.History = &view
	}

	s.writeTemplate(w, http.StatusOK, "page", data)
}

// uploadHandler accepts the first file of multipart field "resume"
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	v, _ := s.Visitors.Get(w, r)

	doc, err := readUpload(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	_, result, err := v.Controller.UploadResume(r.Context(), v.State(), doc)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	v.Update(func(cur session.State) session.State { return cur.WithUpload(*result) })

	s.writeView(w, r, "upload", render.Upload(*result))
}

// analyzeHandler runs an analysis and refreshes the cached history in
// the background once it succeeds.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	v, _ := s.Visitors.Get(w, r)

	var req types.AnalysisRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), err))
		return
	}

	result, refresh, err := v.Controller.AnalyzeResume(r.Context(), v.State(), req)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.om.RecordScore(r.Context(), result.Analysis.ATSScore.Int())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyApplyTimeout)
		defer cancel()
		if refresh.Wait(ctx) != nil {
			return
		}
		v.Update(func(cur session.State) session.State {
			next, _ := refresh.Apply(cur)
			return next
		})
	}()

	s.writeView(w, r, "analysis", render.Analysis(*result))
}

// sampleJobHandler returns one random sample job for pre-filling the form
func (s *Server) sampleJobHandler(w http.ResponseWriter, r *http.Request) {
	v, _ := s.Visitors.Get(w, r)

	st := v.State()
	if !st.SampleJobsLoaded {
		loaded := v.Controller.LoadSampleJobs(r.Context(), st)
		st = v.Update(func(cur session.State) session.State { return cur.Merge(loaded) })
	}

	job, err := v.Controller.PickRandomSampleJob(st)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// historyHandler reloads the history. An empty history answers 204 so the
// page keeps whatever table it already shows.
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	v, _ := s.Visitors.Get(w, r)

	loaded, changed := v.Controller.LoadHistory(r.Context(), v.State())
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	st := v.Update(func(cur session.State) session.State {
		next, _ := cur.WithHistory(loaded.History)
		return next
	})

	view, ok := render.History(st.History, s.History)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeView(w, r, "history", view)
}

// healthHandler reports service health including the backend circuit breakers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	visitors := s.Visitors.Len()
	unhealthy := s.Visitors.BackendHealth()

	response := map[string]any{
		"status":  "healthy",
		"service": "resumefit",
		"version": s.Version,
		"backend": map[string]any{
			"base_url":           s.AppConfig.Backend.BaseURL,
			"visitors":           visitors,
			"unhealthy_visitors": unhealthy,
			"circuit_breaker":    s.AppConfig.Backend.CircuitBreaker.Enabled,
		},
	}

	status := http.StatusOK
	if unhealthy > 0 {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "resumefit",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"visitors": s.Visitors.GetStats(),
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// readUpload returns the first file of the resume field. A request
// without any file yields an empty Document.
func readUpload(r *http.Request) (types.Document, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
			return types.Document{}, errors.NewValidationError(errors.ErrCodeFileTooLarge,
				"File is too large", err)
		}
		return types.Document{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Request must be multipart/form-data", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[backend.UploadField]
	if len(files) == 0 {
		return types.Document{}, nil
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		return types.Document{}, errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot read uploaded file", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return types.Document{}, errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot read uploaded file", err)
	}
	return types.Document{Name: header.Filename, Content: content}, nil
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// statusFor maps an error category to an HTTP status
func statusFor(err error) int {
	appErr, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case errors.ErrorTypeValidation, errors.ErrorTypeIO:
		if appErr.Code == errors.ErrCodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.ErrorTypePrecondition:
		return http.StatusPreconditionFailed
	case errors.ErrorTypeBusy:
		return http.StatusConflict
	case errors.ErrorTypeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err as a JSON error carrying its user-facing message
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := ""
	if appErr, ok := errors.As(err); ok {
		code = appErr.Code
	}
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path, "status", status)
	}
	writeErrorResponse(w, errors.UserMessage(err), code, "", status)
}

// writeView answers with view as JSON when the client asks for it and as
// an HTML fragment otherwise.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, name string, view any) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, view)
		return
	}
	s.writeTemplate(w, http.StatusOK, name, view)
}

func (s *Server) writeTemplate(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.Logger.LogError(err, "Failed to render template", "template", name)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func acceptList(extensions []string) string {
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		out = append(out, "."+ext)
	}
	return strings.Join(out, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, code, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Code:    code,
		Message: message,
	})
}
