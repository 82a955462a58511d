// Package render turns backend results into display models.
// Every function here is pure: no I/O, no clock, no shared state.
package render

import (
	"fmt"
	"strings"
	"time"

	"resumefit/internal/presenter"
	"resumefit/internal/types"
)

const (
	NoMatchingSkillsMessage = "No matching skills found"
	NoMissingSkillsMessage  = "Great! No missing skills detected"
	UploadSuccessHeadline   = "Resume Uploaded Successfully!"
	ScoreCaption            = "ATS Compatibility Score"
)

// PanelKind identifies one of the skill panels of an analysis
type PanelKind string

const (
	PanelMatching PanelKind = "matching"
	PanelMissing  PanelKind = "missing"
	PanelResume   PanelKind = "resume"
)

// SkillPanel is a titled group of skill tags. When Tags is empty the
// panel shows Placeholder instead.
type SkillPanel struct {
	Kind        PanelKind      `json:"kind"`
	Title       string         `json:"title"`
	Count       int            `json:"count"`
	Tags        []string       `json:"tags"`
	Placeholder string         `json:"placeholder,omitempty"`
	Tone        presenter.Tone `json:"tone"`
}

// Empty reports whether the panel renders its placeholder
func (p SkillPanel) Empty() bool {
	return len(p.Tags) == 0
}

// Heading returns the panel title with its tag count
func (p SkillPanel) Heading() string {
	return fmt.Sprintf("%s (%d)", p.Title, p.Count)
}

// AnalysisView is the display model of one analysis result
type AnalysisView struct {
	Score           int              `json:"score"`
	Percent         int              `json:"percent"`
	Progress        float64          `json:"progress"`
	Bucket          presenter.Bucket `json:"bucket"`
	Position        string           `json:"position"`
	Caption         string           `json:"caption"`
	Matching        SkillPanel       `json:"matching"`
	Missing         SkillPanel       `json:"missing"`
	ResumeSkills    SkillPanel       `json:"resumeSkills"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// HasRecommendations reports whether the recommendations panel is rendered
func (v AnalysisView) HasRecommendations() bool {
	return v.Recommendations != nil
}

// Analysis builds the display model for result
func Analysis(result types.AnalysisResult) AnalysisView {
	detail := result.Analysis
	score := detail.ATSScore

	view := AnalysisView{
		Score:    score.Int(),
		Percent:  score.Int(),
		Progress: float64(score) / float64(types.MaxScore),
		Bucket:   presenter.BucketFor(score),
		Position: Position(result.JobTitle, result.Company),
		Caption:  ScoreCaption,
		Matching: panel(PanelMatching, "Matching Skills", detail.MatchingSkills,
			NoMatchingSkillsMessage, presenter.ToneSuccess),
		Missing: panel(PanelMissing, "Missing Skills", detail.MissingSkills,
			NoMissingSkillsMessage, presenter.ToneDanger),
		ResumeSkills: panel(PanelResume, "Your Resume Skills", detail.ResumeSkills,
			"", presenter.ToneInfo),
	}

	if len(detail.Recommendations) > 0 {
		view.Recommendations = append([]string(nil), detail.Recommendations...)
	}

	return view
}

// Position formats the "<title> at <company>" line
func Position(title, company string) string {
	return fmt.Sprintf("%s at %s", title, company)
}

func panel(kind PanelKind, title string, skills []string, placeholder string, tone presenter.Tone) SkillPanel {
	tags := UniqueTags(skills)
	p := SkillPanel{
		Kind:  kind,
		Title: title,
		Count: len(tags),
		Tags:  tags,
		Tone:  tone,
	}
	if len(tags) == 0 {
		p.Placeholder = placeholder
	}
	return p
}

// UniqueTags drops blank and repeated skills, keeping first-seen order
func UniqueTags(skills []string) []string {
	tags := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if _, ok := seen[skill]; ok {
			continue
		}
		seen[skill] = struct{}{}
		tags = append(tags, skill)
	}
	return tags
}

// UploadView is the display model of a successful upload
type UploadView struct {
	Headline    string   `json:"headline"`
	Filename    string   `json:"filename"`
	Skills      []string `json:"skills"`
	TextPreview string   `json:"textPreview"`
}

// Upload builds the display model for result. Skills keep server order
// and are not de-duplicated.
func Upload(result types.UploadResult) UploadView {
	skills := result.Skills
	if skills == nil {
		skills = []string{}
	}
	return UploadView{
		Headline:    UploadSuccessHeadline,
		Filename:    result.Filename,
		Skills:      skills,
		TextPreview: result.TextPreview,
	}
}

// HistoryOptions controls date presentation of history rows
type HistoryOptions struct {
	Location   *time.Location
	DateLayout string
}

// DefaultDateLayout renders dates as month/day/year
const DefaultDateLayout = "1/2/2006"

// HistoryRow is one rendered history entry
type HistoryRow struct {
	Filename string          `json:"filename"`
	JobTitle string          `json:"jobTitle"`
	Company  string          `json:"company"`
	Score    int             `json:"score"`
	Badge    presenter.Badge `json:"badge"`
	Tone     presenter.Tone  `json:"tone"`
	Date     string          `json:"date"`
}

// HistoryView is the display model of the history table
type HistoryView struct {
	Rows []HistoryRow `json:"rows"`
}

// History builds the history table. It returns false for an empty list,
// in which case nothing should be rendered and prior output stays as is.
// Rows follow the order of entries exactly.
func History(entries []types.HistoryEntry, opts HistoryOptions) (HistoryView, bool) {
	if len(entries) == 0 {
		return HistoryView{}, false
	}

	rows := make([]HistoryRow, 0, len(entries))
	for _, e := range entries {
		badge := presenter.BadgeFor(e.ATSScore)
		rows = append(rows, HistoryRow{
			Filename: e.Filename,
			JobTitle: e.JobTitle,
			Company:  e.Company,
			Score:    e.ATSScore.Int(),
			Badge:    badge,
			Tone:     badge.Tone(),
			Date:     FormatDate(e.AnalyzedAt, opts),
		})
	}
	return HistoryView{Rows: rows}, true
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses backend timestamps. Values without a zone are UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders raw as a localized date, or returns it unchanged
// when it cannot be parsed.
func FormatDate(raw string, opts HistoryOptions) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	layout := opts.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return t.In(loc).Format(layout)
}

// Report is an analysis together with the history fetched after it
type Report struct {
	Analysis AnalysisView `json:"analysis"`
	History  *HistoryView `json:"history,omitempty"`
}

// NewReport pairs view with history when history has rows
func NewReport(view AnalysisView, history HistoryView, ok bool) Report {
	report := Report{Analysis: view}
	if ok {
		report.History = &history
	}
	return report
}
