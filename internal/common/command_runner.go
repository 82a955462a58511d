package common

import (
	"context"
	"fmt"
	"time"

	"resumefit/internal/errors"
	"resumefit/internal/types"
)

// DocumentOperationFunc runs one workflow step against a loaded resume and
// returns the display model to print.
type DocumentOperationFunc[Output any] func(context.Context, types.Document) (Output, error)

// RunDocumentCommand encapsulates the common logic of commands that take a
// resume path: load and validate the file, optionally preflight it, run the
// operation and write the formatted result.
func RunDocumentCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	fileProcessor *FileProcessor,
	outputHandler *OutputHandler,
	cmdConfig CommandConfig,
	path string,
	preflight bool,
	operation DocumentOperationFunc[Output],
) error {
	doc, err := fileProcessor.LoadDocument(path)
	if err != nil {
		return err
	}

	if preflight {
		if _, err := fileProcessor.Preflight(doc); err != nil {
			return err
		}
	}

	logger.Info("Running command",
		"file", doc.Name,
		"size", len(doc.Content),
		"format", cmdConfig.OutputFormat)

	start := time.Now()
	result, err := operation(ctx, doc)
	if err != nil {
		return err
	}
	logger.Debug("Command finished", "file", doc.Name, "duration", time.Since(start).String())

	if err := outputHandler.HandleOutput(result, cmdConfig); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
