package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Score is an ATS score clamped to the 0-100 range
type Score int

const (
	MinScore Score = 0
	MaxScore Score = 100
)

// NewScore rounds a raw backend value half away from zero and clamps it to 0-100
func NewScore(raw float64) Score {
	if math.IsNaN(raw) {
		return MinScore
	}
	rounded := math.Round(raw)
	switch {
	case rounded < float64(MinScore):
		return MinScore
	case rounded > float64(MaxScore):
		return MaxScore
	}
	return Score(rounded)
}

// UnmarshalJSON accepts integral and fractional scores
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = MinScore
		return nil
	}
	var raw float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid ats_score %s: %w", string(data), err)
	}
	*s = NewScore(raw)
	return nil
}

// Int returns the score as a plain int
func (s Score) Int() int {
	return int(s)
}

// Document is one file selected for upload
type Document struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// UploadResult represents the backend response to a resume upload
type UploadResult struct {
	Success     bool     `json:"success"`
	Filename    string   `json:"filename"`
	Skills      []string `json:"skills"`
	TextPreview string   `json:"text_preview"`
	Error       string   `json:"error,omitempty"`
}

// AnalysisRequest represents the body sent to the analyze endpoint
type AnalysisRequest struct {
	JobTitle       string `json:"job_title"`
	Company        string `json:"company"`
	JobDescription string `json:"job_description"`
}

// AnalysisDetail holds the scored comparison of resume and job description
type AnalysisDetail struct {
	ATSScore        Score    `json:"ats_score"`
	MatchingSkills  []string `json:"matching_skills"`
	MissingSkills   []string `json:"missing_skills"`
	ResumeSkills    []string `json:"resume_skills"`
	Recommendations []string `json:"recommendations"`
}

// AnalysisResult represents the backend response to an analysis request
type AnalysisResult struct {
	Success  bool           `json:"success"`
	JobTitle string         `json:"job_title"`
	Company  string         `json:"company"`
	Analysis AnalysisDetail `json:"analysis"`
	Error    string         `json:"error,omitempty"`
}

// HistoryEntry is one past analysis as reported by the backend
type HistoryEntry struct {
	ID         int64  `json:"id,omitempty"`
	Filename   string `json:"filename"`
	JobTitle   string `json:"job_title"`
	Company    string `json:"company"`
	ATSScore   Score  `json:"ats_score"`
	AnalyzedAt string `json:"analyzed_at"`
}

// SampleJob is a canned job description used to pre-fill the analyze form
type SampleJob struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// SampleJobsResponse wraps the sample jobs endpoint payload
type SampleJobsResponse struct {
	Jobs []SampleJob `json:"jobs"`
}

// HistoryResponse wraps the history endpoint payload
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}
