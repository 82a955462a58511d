// Package fakebackend provides an in-memory analysis service for tests.
// It follows the HTTP contract of the real service: a session cookie links
// uploads to analyses and every response is JSON.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"resumefit/internal/types"
)

const sessionCookie = "session"

// DefaultSkills is the vocabulary the fake extracts from text
var DefaultSkills = []string{"Python", "SQL", "AWS", "Docker", "Go", "Kubernetes", "React", "Git"}

// DefaultSampleJobs mirrors the canned jobs of the real service
var DefaultSampleJobs = []types.SampleJob{
	{Title: "Senior Python Developer", Company: "Tech Corp", Description: "Required skills: Python, SQL, AWS, Docker, Git."},
	{Title: "Platform Engineer", Company: "Cloud Co", Description: "Go, Kubernetes, Docker and AWS experience."},
}

type override struct {
	status int
	body   string
}

type upload struct {
	filename string
	text     string
}

// Server is a fake analysis backend
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	sessions   map[string]upload
	history    []types.HistoryEntry
	sampleJobs []types.SampleJob
	overrides  map[string]override
	calls      map[string]int
	delay      map[string]chan struct{}
	nextID     int64
}

// New starts a fake backend; callers must Close it
func New() *Server {
	s := &Server{
		sessions:   make(map[string]upload),
		sampleJobs: DefaultSampleJobs,
		overrides:  make(map[string]override),
		calls:      make(map[string]int),
		delay:      make(map[string]chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.track("/upload", s.handleUpload))
	mux.HandleFunc("POST /analyze", s.track("/analyze", s.handleAnalyze))
	mux.HandleFunc("GET /history", s.track("/history", s.handleHistory))
	mux.HandleFunc("GET /sample-jobs", s.track("/sample-jobs", s.handleSampleJobs))
	s.Server = httptest.NewServer(mux)
	return s
}

// Override makes path answer with a fixed status and raw body
func (s *Server) Override(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = override{status: status, body: body}
}

// Hold blocks requests to path until the returned func is called
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.delay[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.delay, path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// SetSampleJobs replaces the sample job list
func (s *Server) SetSampleJobs(jobs []types.SampleJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleJobs = jobs
}

// Calls returns how many requests reached path
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests across all paths
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Server) track(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[path]++
		hold := s.delay[path]
		ov, overridden := s.overrides[path]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		if overridden {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ov.status)
			_, _ = io.WriteString(w, ov.body)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("resume")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No file selected"})
		return
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), ".")) {
	case "pdf", "docx", "txt":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid file type. Please upload PDF, DOCX, or TXT files."})
		return
	}

	content, _ := io.ReadAll(file)
	text := string(content)
	if strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Could not extract text from file"})
		return
	}

	id := sessionID(r)
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})
	}

	s.mu.Lock()
	s.sessions[id] = upload{filename: header.Filename, text: text}
	s.mu.Unlock()

	preview := text
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"filename":     header.Filename,
		"skills":       extractSkills(text),
		"text_preview": preview,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": fmt.Sprintf("Error analyzing resume: %v", err)})
		return
	}

	description := body["job_description"]
	if description == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Job description is required"})
		return
	}

	s.mu.Lock()
	up, ok := s.sessions[sessionID(r)]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Please upload a resume first"})
		return
	}

	title, ok := body["job_title"]
	if !ok {
		title = "Job Position"
	}
	company, ok := body["company"]
	if !ok {
		company = "Company"
	}

	resumeSkills := extractSkills(up.text)
	jobSkills := extractSkills(description)
	have := make(map[string]bool, len(resumeSkills))
	for _, skill := range resumeSkills {
		have[skill] = true
	}

	matching, missing := []string{}, []string{}
	for _, skill := range jobSkills {
		if have[skill] {
			matching = append(matching, skill)
		} else {
			missing = append(missing, skill)
		}
	}

	score := 0.0
	if len(jobSkills) > 0 {
		score = math.Round(float64(len(matching))/float64(len(jobSkills))*10000) / 100
	}

	recommendations := []string{}
	if score < 60 {
		recommendations = append(recommendations, "Consider restructuring your resume to better match job requirements")
	}
	if len(missing) > 0 {
		recommendations = append(recommendations, "Consider adding these skills: "+strings.Join(missing, ", "))
	}

	s.mu.Lock()
	s.nextID++
	entry := types.HistoryEntry{
		ID:         s.nextID,
		Filename:   up.filename,
		JobTitle:   title,
		Company:    company,
		ATSScore:   types.NewScore(score),
		AnalyzedAt: time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	s.history = append([]types.HistoryEntry{entry}, s.history...)
	if len(s.history) > 10 {
		s.history = s.history[:10]
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"job_title": title,
		"company":   company,
		"analysis": map[string]any{
			"ats_score":       score,
			"matching_skills": matching,
			"missing_skills":  missing,
			"resume_skills":   resumeSkills,
			"recommendations": recommendations,
		},
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	history := append([]types.HistoryEntry{}, s.history...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleSampleJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	jobs := append([]types.SampleJob{}, s.sampleJobs...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// extractSkills returns vocabulary skills found in text, in vocabulary order
func extractSkills(text string) []string {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '#')
	}) {
		words[w] = true
	}

	skills := []string{}
	for _, skill := range DefaultSkills {
		if words[strings.ToLower(skill)] {
			skills = append(skills, skill)
		}
	}
	return skills
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
