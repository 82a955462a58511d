package utils

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// PreviewLength is the number of characters kept in a text preview
const PreviewLength = 500

// ExtractText returns the plain text of a pdf, docx or txt document
func ExtractText(filename string, content []byte) (string, error) {
	switch GetFileExtension(filename) {
	case "pdf":
		return extractPDFText(content)
	case "docx":
		return extractDocxText(content)
	case "txt":
		if !utf8.Valid(content) {
			return "", fmt.Errorf("text file is not valid UTF-8")
		}
		return string(content), nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", filename)
	}
}

func extractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
)

func extractDocxText(content []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	raw := doc.Editable().GetContent()
	raw = paragraphEnd.ReplaceAllString(raw, "\n")
	return html.UnescapeString(xmlTag.ReplaceAllString(raw, "")), nil
}

// Preview truncates text to PreviewLength runes, marking the cut with "..."
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength]) + "..."
}
