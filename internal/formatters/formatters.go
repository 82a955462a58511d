package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"resumefit/internal/presenter"
	"resumefit/internal/render"
	"resumefit/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("html", "any", NewHTMLFormatter())

	registry.RegisterFormatter("text", "UploadView", &UploadTextFormatter{})
	registry.RegisterFormatter("markdown", "UploadView", &UploadMarkdownFormatter{})
	registry.RegisterFormatter("text", "AnalysisView", &AnalysisTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalysisView", &AnalysisMarkdownFormatter{})
	registry.RegisterFormatter("text", "Report", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "Report", &ReportMarkdownFormatter{})
	registry.RegisterFormatter("text", "HistoryView", &HistoryTextFormatter{})
	registry.RegisterFormatter("markdown", "HistoryView", &HistoryMarkdownFormatter{})
	registry.RegisterFormatter("text", "SampleJobs", &SampleJobsTextFormatter{})
	registry.RegisterFormatter("markdown", "SampleJobs", &SampleJobsMarkdownFormatter{})
	registry.RegisterFormatter("text", "SampleJob", &SampleJobsTextFormatter{})
	registry.RegisterFormatter("markdown", "SampleJob", &SampleJobsMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case render.UploadView:
		return "UploadView"
	case render.AnalysisView:
		return "AnalysisView"
	case render.Report:
		return "Report"
	case render.HistoryView:
		return "HistoryView"
	case []types.SampleJob:
		return "SampleJobs"
	case types.SampleJob:
		return "SampleJob"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// UploadTextFormatter handles text formatting for uploads
type UploadTextFormatter struct{}

func (utf *UploadTextFormatter) Format(data any) (string, error) {
	view, ok := data.(render.UploadView)
	if !ok {
		return "", fmt.Errorf("expected UploadView, got %T", data)
	}

	var output strings.Builder
	writeUploadText(&output, view)
	return output.String(), nil
}

func (utf *UploadTextFormatter) SupportedType() string {
	return "UploadView"
}

func writeUploadText(output *strings.Builder, view render.UploadView) {
	output.WriteString("=== " + strings.ToUpper(view.Headline) + " ===\n\n")
	fmt.Fprintf(output, "File: %s\n\n", view.Filename)
	fmt.Fprintf(output, "Skills Found (%d):\n", len(view.Skills))
	if len(view.Skills) == 0 {
		output.WriteString("  (none)\n")
	}
	for _, skill := range view.Skills {
		fmt.Fprintf(output, "  [%s]\n", skill)
	}
	if view.TextPreview != "" {
		output.WriteString("\nPreview:\n")
		output.WriteString(view.TextPreview)
		output.WriteString("\n")
	}
}

// UploadMarkdownFormatter handles markdown formatting for uploads
type UploadMarkdownFormatter struct{}

func (umf *UploadMarkdownFormatter) Format(data any) (string, error) {
	view, ok := data.(render.UploadView)
	if !ok {
		return "", fmt.Errorf("expected UploadView, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# " + view.Headline + "\n\n")
	fmt.Fprintf(&output, "**File:** %s\n\n", view.Filename)
	fmt.Fprintf(&output, "## Skills Found (%d)\n\n", len(view.Skills))
	for _, skill := range view.Skills {
		fmt.Fprintf(&output, "- `%s`\n", skill)
	}
	if view.TextPreview != "" {
		output.WriteString("\n## Preview\n\n```\n")
		output.WriteString(view.TextPreview)
		output.WriteString("\n```\n")
	}
	return output.String(), nil
}

func (umf *UploadMarkdownFormatter) SupportedType() string {
	return "UploadView"
}

// AnalysisTextFormatter handles text formatting for analysis results
type AnalysisTextFormatter struct{}

func (atf *AnalysisTextFormatter) Format(data any) (string, error) {
	view, ok := data.(render.AnalysisView)
	if !ok {
		return "", fmt.Errorf("expected AnalysisView, got %T", data)
	}

	var output strings.Builder
	writeAnalysisText(&output, view)
	return output.String(), nil
}

func (atf *AnalysisTextFormatter) SupportedType() string {
	return "AnalysisView"
}

func writeAnalysisText(output *strings.Builder, view render.AnalysisView) {
	output.WriteString("=== ANALYSIS RESULT ===\n\n")
	fmt.Fprintf(output, "%s\n", view.Position)
	fmt.Fprintf(output, "%s: %d%%  %s\n", view.Caption, view.Percent, progressBar(view.Progress, 20))
	fmt.Fprintf(output, "%s\n\n", view.Bucket.Label)

	for _, panel := range []render.SkillPanel{view.Matching, view.Missing, view.ResumeSkills} {
		output.WriteString(panel.Heading() + ":\n")
		if panel.Empty() && panel.Placeholder != "" {
			fmt.Fprintf(output, "  %s\n", panel.Placeholder)
		}
		for _, tag := range panel.Tags {
			fmt.Fprintf(output, "  [%s]\n", tag)
		}
		output.WriteString("\n")
	}

	if view.HasRecommendations() {
		output.WriteString("=== RECOMMENDATIONS ===\n")
		for i, rec := range view.Recommendations {
			fmt.Fprintf(output, "%d. %s\n", i+1, rec)
		}
	}
}

// AnalysisMarkdownFormatter handles markdown formatting for analysis results
type AnalysisMarkdownFormatter struct{}

func (amf *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	view, ok := data.(render.AnalysisView)
	if !ok {
		return "", fmt.Errorf("expected AnalysisView, got %T", data)
	}

	var output strings.Builder
	writeAnalysisMarkdown(&output, view)
	return output.String(), nil
}

func (amf *AnalysisMarkdownFormatter) SupportedType() string {
	return "AnalysisView"
}

func writeAnalysisMarkdown(output *strings.Builder, view render.AnalysisView) {
	output.WriteString("# Analysis Result\n\n")
	fmt.Fprintf(output, "**%s**\n\n", view.Position)
	fmt.Fprintf(output, "**%s:** %d%% (%s)\n\n", view.Caption, view.Percent, view.Bucket.Label)

	for _, panel := range []render.SkillPanel{view.Matching, view.Missing, view.ResumeSkills} {
		fmt.Fprintf(output, "## %s\n\n", panel.Heading())
		if panel.Empty() && panel.Placeholder != "" {
			fmt.Fprintf(output, "_%s_\n\n", panel.Placeholder)
			continue
		}
		for _, tag := range panel.Tags {
			fmt.Fprintf(output, "- `%s`\n", tag)
		}
		output.WriteString("\n")
	}

	if view.HasRecommendations() {
		output.WriteString("## Recommendations\n\n")
		for _, rec := range view.Recommendations {
			fmt.Fprintf(output, "- %s\n", rec)
		}
		output.WriteString("\n")
	}
}

// ReportTextFormatter handles text formatting for an analysis with history
type ReportTextFormatter struct{}

func (rtf *ReportTextFormatter) Format(data any) (string, error) {
	report, ok := data.(render.Report)
	if !ok {
		return "", fmt.Errorf("expected Report, got %T", data)
	}

	var output strings.Builder
	writeAnalysisText(&output, report.Analysis)
	if report.History != nil {
		output.WriteString("\n")
		writeHistoryText(&output, *report.History)
	}
	return output.String(), nil
}

func (rtf *ReportTextFormatter) SupportedType() string {
	return "Report"
}

// ReportMarkdownFormatter handles markdown formatting for an analysis with history
type ReportMarkdownFormatter struct{}

func (rmf *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(render.Report)
	if !ok {
		return "", fmt.Errorf("expected Report, got %T", data)
	}

	var output strings.Builder
	writeAnalysisMarkdown(&output, report.Analysis)
	if report.History != nil {
		writeHistoryMarkdown(&output, *report.History)
	}
	return output.String(), nil
}

func (rmf *ReportMarkdownFormatter) SupportedType() string {
	return "Report"
}

// HistoryTextFormatter handles text formatting for the history table
type HistoryTextFormatter struct{}

func (htf *HistoryTextFormatter) Format(data any) (string, error) {
	view, ok := data.(render.HistoryView)
	if !ok {
		return "", fmt.Errorf("expected HistoryView, got %T", data)
	}

	var output strings.Builder
	writeHistoryText(&output, view)
	return output.String(), nil
}

func (htf *HistoryTextFormatter) SupportedType() string {
	return "HistoryView"
}

func writeHistoryText(output *strings.Builder, view render.HistoryView) {
	if len(view.Rows) == 0 {
		return
	}
	output.WriteString("=== RECENT ANALYSES ===\n")
	fmt.Fprintf(output, "%-24s %-24s %-16s %6s  %-10s\n", "File", "Position", "Company", "Score", "Date")
	for _, row := range view.Rows {
		fmt.Fprintf(output, "%-24s %-24s %-16s %5d%%  %-10s %s\n",
			truncate(row.Filename, 24), truncate(row.JobTitle, 24), truncate(row.Company, 16),
			row.Score, row.Date, badgeMark(row.Badge))
	}
}

// HistoryMarkdownFormatter handles markdown formatting for the history table
type HistoryMarkdownFormatter struct{}

func (hmf *HistoryMarkdownFormatter) Format(data any) (string, error) {
	view, ok := data.(render.HistoryView)
	if !ok {
		return "", fmt.Errorf("expected HistoryView, got %T", data)
	}

	var output strings.Builder
	writeHistoryMarkdown(&output, view)
	return output.String(), nil
}

func (hmf *HistoryMarkdownFormatter) SupportedType() string {
	return "HistoryView"
}

func writeHistoryMarkdown(output *strings.Builder, view render.HistoryView) {
	if len(view.Rows) == 0 {
		return
	}
	output.WriteString("## Recent Analyses\n\n")
	output.WriteString("| File | Position | Company | Score | Date |\n")
	output.WriteString("|---|---|---|---|---|\n")
	for _, row := range view.Rows {
		fmt.Fprintf(output, "| %s | %s | %s | %d%% (%s) | %s |\n",
			escapeCell(row.Filename), escapeCell(row.JobTitle), escapeCell(row.Company),
			row.Score, row.Badge, row.Date)
	}
	output.WriteString("\n")
}

// SampleJobsTextFormatter handles text formatting for sample jobs
type SampleJobsTextFormatter struct{}

func (stf *SampleJobsTextFormatter) Format(data any) (string, error) {
	jobs, err := sampleJobs(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for i, job := range jobs {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "=== %s ===\n", strings.ToUpper(render.Position(job.Title, job.Company)))
		output.WriteString(job.Description)
		output.WriteString("\n")
	}
	return output.String(), nil
}

func (stf *SampleJobsTextFormatter) SupportedType() string {
	return "SampleJobs"
}

// SampleJobsMarkdownFormatter handles markdown formatting for sample jobs
type SampleJobsMarkdownFormatter struct{}

func (smf *SampleJobsMarkdownFormatter) Format(data any) (string, error) {
	jobs, err := sampleJobs(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	for _, job := range jobs {
		fmt.Fprintf(&output, "## %s\n\n", render.Position(job.Title, job.Company))
		output.WriteString(job.Description)
		output.WriteString("\n\n")
	}
	return output.String(), nil
}

func (smf *SampleJobsMarkdownFormatter) SupportedType() string {
	return "SampleJobs"
}

func sampleJobs(data any) ([]types.SampleJob, error) {
	switch v := data.(type) {
	case []types.SampleJob:
		return v, nil
	case types.SampleJob:
		return []types.SampleJob{v}, nil
	default:
		return nil, fmt.Errorf("expected sample jobs, got %T", data)
	}
}

func progressBar(progress float64, width int) string {
	filled := int(progress*float64(width) + 0.5)
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func badgeMark(badge presenter.Badge) string {
	switch badge {
	case presenter.BadgePositive:
		return "+"
	case presenter.BadgeCaution:
		return "~"
	default:
		return "!"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
