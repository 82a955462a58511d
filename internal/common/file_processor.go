package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"resumefit/internal/errors"
	"resumefit/internal/types"
	"resumefit/internal/utils"
)

// DocumentPolicy restricts which documents may be uploaded
type DocumentPolicy struct {
	AllowedExtensions []string
	MaxFileSize       int64
}

// FileProcessor handles common file operations
type FileProcessor struct {
	logger *errors.Logger
	policy DocumentPolicy
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger, policy DocumentPolicy) *FileProcessor {
	return &FileProcessor{logger: logger, policy: policy}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	var reader io.Reader = file
	if fp.policy.MaxFileSize > 0 {
		reader = io.LimitReader(file, fp.policy.MaxFileSize+1)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	if fp.policy.MaxFileSize > 0 && int64(len(content)) > fp.policy.MaxFileSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File is too large: %s (limit %s)", filepath.Base(filename), utils.FormatFileSize(fp.policy.MaxFileSize)), nil)
	}

	return content, nil
}

// ReadText reads a UTF-8 text file such as a job description
func (fp *FileProcessor) ReadText(filename string) (string, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return "", errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	content, err := fp.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// LoadDocument reads a resume from disk and checks it against the policy
func (fp *FileProcessor) LoadDocument(path string) (types.Document, error) {
	if err := utils.ValidateInputFile(path); err != nil {
		return types.Document{}, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", path), err)
	}

	content, err := fp.ReadFile(path)
	if err != nil {
		return types.Document{}, err
	}

	doc := types.Document{Name: filepath.Base(path), Content: content}
	if err := fp.ValidateDocument(doc); err != nil {
		return types.Document{}, err
	}
	return doc, nil
}

// ValidateDocument applies the extension, emptiness and size checks to doc
func (fp *FileProcessor) ValidateDocument(doc types.Document) error {
	if strings.TrimSpace(doc.Name) == "" {
		return errors.NewValidationError(errors.ErrCodeMissingDocument, "No file selected", nil)
	}

	if !utils.HasAllowedExtension(doc.Name, fp.policy.AllowedExtensions) {
		return errors.NewValidationError(errors.ErrCodeInvalidFileType,
			fmt.Sprintf("Invalid file type. Please upload %s files.", utils.DescribeExtensions(fp.policy.AllowedExtensions)), nil).
			WithContext("filename", doc.Name)
	}

	if len(doc.Content) == 0 {
		return errors.NewValidationError(errors.ErrCodeEmptyFile,
			fmt.Sprintf("File is empty: %s", doc.Name), nil)
	}

	if fp.policy.MaxFileSize > 0 && int64(len(doc.Content)) > fp.policy.MaxFileSize {
		return errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File is too large: %s (limit %s)", doc.Name, utils.FormatFileSize(fp.policy.MaxFileSize)), nil).
			WithContext("size", len(doc.Content))
	}

	return nil
}

// Preflight extracts the document text locally and rejects documents
// without any extractable text before they are sent anywhere.
func (fp *FileProcessor) Preflight(doc types.Document) (string, error) {
	text, err := utils.ExtractText(doc.Name, doc.Content)
	if err != nil {
		fp.logger.Debug("Local text extraction failed", "filename", doc.Name, "error", err.Error())
		return "", errors.NewValidationError(errors.ErrCodeNoExtractableText,
			"Could not extract text from file", err).WithContext("filename", doc.Name)
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.NewValidationError(errors.ErrCodeNoExtractableText,
			"Could not extract text from file", nil).WithContext("filename", doc.Name)
	}
	return text, nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
