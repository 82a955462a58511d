package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHasAllowedExtension(t *testing.T) {
	allowed := []string{"pdf", "docx", "txt"}
	tests := []struct {
		name string
		want bool
	}{
		{"cv.pdf", true},
		{"CV.PDF", true},
		{"resume.docx", true},
		{"notes.txt", true},
		{"resume.doc", false},
		{"resume", false},
		{"archive.pdf.zip", false},
	}

	for _, tt := range tests {
		if got := HasAllowedExtension(tt.name, allowed); got != tt.want {
			t.Errorf("HasAllowedExtension(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	if !HasAllowedExtension("anything.bin", nil) {
		t.Errorf("empty allow list should accept every file")
	}
}

func TestDescribeExtensions(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"pdf"}, "PDF"},
		{[]string{"pdf", "txt"}, "PDF or TXT"},
		{[]string{"pdf", "docx", "txt"}, "PDF, DOCX, or TXT"},
	}

	for _, tt := range tests {
		if got := DescribeExtensions(tt.in); got != tt.want {
			t.Errorf("DescribeExtensions(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	if err := os.WriteFile(path, []byte("Python"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := ValidateInputFile(path); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateInputFile(""); err == nil {
		t.Errorf("expected error for empty name")
	}
	if err := ValidateInputFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Errorf("expected error for missing file")
	}
	if err := ValidateInputFile(dir); err == nil {
		t.Errorf("expected error for directory")
	}
}

func TestExtractTextPlain(t *testing.T) {
	text, err := ExtractText("cv.txt", []byte("Go developer"))
	if err != nil || text != "Go developer" {
		t.Errorf("ExtractText = %q, %v", text, err)
	}

	if _, err := ExtractText("cv.txt", []byte{0xff, 0xfe}); err == nil {
		t.Errorf("expected error for invalid UTF-8")
	}
	if _, err := ExtractText("cv.rtf", []byte("x")); err == nil {
		t.Errorf("expected error for unsupported format")
	}
}

func TestExtractTextRejectsCorruptDocuments(t *testing.T) {
	if _, err := ExtractText("cv.pdf", []byte("not a pdf")); err == nil {
		t.Errorf("expected error for corrupt pdf")
	}
	if _, err := ExtractText("cv.docx", []byte("not a zip")); err == nil {
		t.Errorf("expected error for corrupt docx")
	}
}

func TestPreview(t *testing.T) {
	short := "short text"
	if got := Preview(short); got != short {
		t.Errorf("Preview(short) = %q", got)
	}

	long := strings.Repeat("é", PreviewLength+10)
	got := Preview(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix")
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != PreviewLength {
		t.Errorf("preview kept %d runes, want %d", n, PreviewLength)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{16 * 1024 * 1024, "16.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
