package common

import (
	"fmt"
	"slices"
	"strings"

	"resumefit/internal/errors"
)

// ResolveOutputFormat picks the requested format, falling back to the
// configured default, and checks it against the supported list.
// An empty supported list accepts any format.
func ResolveOutputFormat(requested, fallback string, supported []string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(requested))
	if format == "" {
		format = fallback
	}
	if err := ValidateOutputFormat(format, supported); err != nil {
		return "", err
	}
	return format, nil
}

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supported []string) error {
	if len(supported) == 0 || slices.Contains(supported, format) {
		return nil
	}

	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s'. Supported formats: %s",
			format, strings.Join(supported, ", ")), nil)
}
