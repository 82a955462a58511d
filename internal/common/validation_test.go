package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"resumefit/internal/errors"
	"resumefit/internal/render"
	"resumefit/internal/types"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"text", "markdown", "json", "html"}
	tests := []struct {
		name      string
		format    string
		supported []string
		wantErr   string
	}{
		{"text", "text", supported, ""},
		{"html", "html", supported, ""},
		{"unknown", "xml", supported, "unsupported output format 'xml'. Supported formats: text, markdown, json, html"},
		{"case sensitive", "JSON", supported, "unsupported output format 'JSON'. Supported formats: text, markdown, json, html"},
		{"empty", "", []string{"json"}, "unsupported output format ''. Supported formats: json"},
		{"no restriction", "yaml", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q", tt.wantErr)
			}
			if got := errors.UserMessage(err); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
			if !errors.IsType(err, errors.ErrorTypeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestResolveOutputFormat(t *testing.T) {
	supported := []string{"text", "json"}
	tests := []struct {
		requested, fallback, want string
		wantErr                   bool
	}{
		{"", "text", "text", false},
		{" JSON ", "text", "json", false},
		{"markdown", "text", "", true},
		{"", "html", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveOutputFormat(tt.requested, tt.fallback, supported)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveOutputFormat(%q, %q) error = %v, wantErr %v", tt.requested, tt.fallback, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveOutputFormat(%q, %q) = %q, want %q", tt.requested, tt.fallback, got, tt.want)
		}
	}
}

func TestHandleOutputToWriter(t *testing.T) {
	var buf bytes.Buffer
	handler := NewOutputHandlerWithWriter(errors.Discard(), &buf)

	view := render.Upload(types.UploadResult{Filename: "cv.txt", Skills: []string{"Go"}})
	if err := handler.HandleOutput(view, CommandConfig{OutputFormat: "markdown"}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("- `Go`")) {
		t.Errorf("unexpected output: %s", buf.String())
	}

	err := handler.HandleOutput(view, CommandConfig{OutputFormat: "yaml"})
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandleOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "upload.json")
	handler := NewOutputHandlerWithWriter(errors.Discard(), &bytes.Buffer{})

	view := render.Upload(types.UploadResult{Filename: "cv.txt"})
	if err := handler.HandleOutput(view, CommandConfig{OutputFile: path, OutputFormat: "json"}); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(content, []byte(`"filename": "cv.txt"`)) {
		t.Errorf("unexpected file content: %s", content)
	}
}

func BenchmarkValidateOutputFormat(b *testing.B) {
	supported := []string{"text", "markdown", "json", "html"}

	b.Run("valid format", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("json", supported)
		}
	})

	b.Run("invalid format", func(b *testing.B) {
		for b.Loop() {
			_ = ValidateOutputFormat("xml", supported)
		}
	})
}
