package cli

import (
	"fmt"
	"io"
	"unicode/utf8"

	"resumefit/internal/common"
	"resumefit/internal/utils"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [resume-file]",
	Short: "Check a resume locally without uploading it",
	Long: `Run the local checks applied before an upload (file type, size, extractable
text) and print a preview of the text that would be analyzed.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	files := common.NewFileProcessor(logger, common.DocumentPolicy{
		AllowedExtensions: cfg.App.AllowedExtensions,
		MaxFileSize:       cfg.App.MaxFileSize,
	})
	return inspect(cmd.OutOrStdout(), files, args[0])
}

func inspect(w io.Writer, files *common.FileProcessor, path string) error {
	doc, err := files.LoadDocument(path)
	if err != nil {
		return err
	}
	text, err := files.Preflight(doc)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "File: %s\n", doc.Name)
	_, _ = fmt.Fprintf(w, "Size: %s\n", utils.FormatFileSize(int64(len(doc.Content))))
	_, _ = fmt.Fprintf(w, "Characters: %d\n\n", utf8.RuneCountInString(text))
	_, _ = fmt.Fprintln(w, "Preview:")
	_, _ = fmt.Fprintln(w, utils.Preview(text))
	return nil
}
