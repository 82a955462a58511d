package formatters

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"resumefit/internal/render"
	"resumefit/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Partials returns a fresh copy of the shared HTML partials: "upload",
// "analysis", "panel", "history", "report", "samples" and "document".
// Callers may add their own templates to the returned set.
func Partials() *template.Template {
	return template.Must(template.New("partials").ParseFS(templateFS, "templates/*.html"))
}

// HTMLFormatter renders display models as a standalone HTML document
type HTMLFormatter struct {
	tmpl *template.Template
}

// NewHTMLFormatter creates an HTML formatter over the shared partials
func NewHTMLFormatter() *HTMLFormatter {
	return &HTMLFormatter{tmpl: Partials()}
}

type htmlDocument struct {
	Title string
	Body  template.HTML
}

func (hf *HTMLFormatter) Format(data any) (string, error) {
	name, title := "", ""
	switch data.(type) {
	case render.UploadView:
		name, title = "upload", render.UploadSuccessHeadline
	case render.AnalysisView:
		name, title = "analysis", "Analysis Result"
	case render.Report:
		name, title = "report", "Analysis Result"
	case render.HistoryView:
		name, title = "history", "Recent Analyses"
	case []types.SampleJob:
		name, title = "samples", "Sample Jobs"
	case types.SampleJob:
		name, title = "samples", "Sample Job"
		data = []types.SampleJob{data.(types.SampleJob)}
	default:
		return "", fmt.Errorf("no HTML template for %T", data)
	}

	var body bytes.Buffer
	if err := hf.tmpl.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}

	var doc bytes.Buffer
	// body was produced by html/template and is already escaped
	if err := hf.tmpl.ExecuteTemplate(&doc, "document", htmlDocument{
		Title: title,
		Body:  template.HTML(body.String()),
	}); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return doc.String(), nil
}

func (hf *HTMLFormatter) SupportedType() string {
	return "any"
}
