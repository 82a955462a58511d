// Package session holds the per-user workflow state as a plain value.
package session

import "resumefit/internal/types"

// Phase is the workflow state derived from a session
type Phase string

const (
	PhaseNotReady       Phase = "not_ready"
	PhaseResumeUploaded Phase = "resume_uploaded"
)

// State is the session and history cache of one user. Operations never
// mutate a State in place; they return the next one.
type State struct {
	Uploaded         bool                 `json:"uploaded"`
	Filename         string               `json:"filename,omitempty"`
	Skills           []string             `json:"skills,omitempty"`
	SampleJobs       []types.SampleJob    `json:"sampleJobs,omitempty"`
	SampleJobsLoaded bool                 `json:"sampleJobsLoaded"`
	History          []types.HistoryEntry `json:"history,omitempty"`
}

// New returns the initial NotReady state
func New() State {
	return State{}
}

// Phase reports the current workflow phase
func (s State) Phase() Phase {
	if s.Uploaded {
		return PhaseResumeUploaded
	}
	return PhaseNotReady
}

// WithUpload records a successful upload. The uploaded flag only ever
// moves from false to true.
func (s State) WithUpload(result types.UploadResult) State {
	next := s
	next.Uploaded = true
	next.Filename = result.Filename
	next.Skills = append([]string(nil), result.Skills...)
	return next
}

// WithSampleJobs caches the sample job list after the first successful load
func (s State) WithSampleJobs(jobs []types.SampleJob) State {
	if s.SampleJobsLoaded {
		return s
	}
	next := s
	next.SampleJobs = append([]types.SampleJob(nil), jobs...)
	next.SampleJobsLoaded = true
	return next
}

// WithHistory replaces the cached history. An empty list leaves the
// state unchanged and reports false.
func (s State) WithHistory(entries []types.HistoryEntry) (State, bool) {
	if len(entries) == 0 {
		return s, false
	}
	next := s
	next.History = append([]types.HistoryEntry(nil), entries...)
	return next, true
}

// Merge folds the background-loaded parts of other into s. Upload fields
// of s win, except that an uploaded flag is never cleared.
func (s State) Merge(other State) State {
	next := s
	if other.Uploaded && !next.Uploaded {
		next.Uploaded = true
		next.Filename = other.Filename
		next.Skills = other.Skills
	}
	if other.SampleJobsLoaded && !next.SampleJobsLoaded {
		next.SampleJobs = other.SampleJobs
		next.SampleJobsLoaded = true
	}
	if len(other.History) > 0 {
		next.History = other.History
	}
	return next
}
