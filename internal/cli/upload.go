package cli

import (
	"context"

	"resumefit/internal/common"
	"resumefit/internal/render"
	"resumefit/internal/session"
	"resumefit/internal/types"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [resume-file]",
	Short: "Upload a resume and show the extracted skills",
	Long: `Upload a resume (PDF, DOCX or TXT) to the analysis service and print the
skills it extracted together with a preview of the resume text.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var (
	uploadOutput    common.CommandConfig
	uploadPreflight bool
)

func init() {
	outputFlags(uploadCmd, &uploadOutput)
	uploadCmd.Flags().BoolVar(&uploadPreflight, "preflight", false, "Extract text locally and reject files without text before uploading")
}

func runUpload(cmd *cobra.Command, args []string) error {
	c, err := clientFromCommand(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	cc, err := resolveOutput(c.cfg, uploadOutput)
	if err != nil {
		return err
	}
	return c.upload(cmd.Context(), args[0], uploadPreflight, cc)
}

func (c *client) upload(ctx context.Context, path string, preflight bool, cc common.CommandConfig) error {
	return common.RunDocumentCommand(ctx, c.logger, c.files, c.output, cc, path, preflight,
		func(ctx context.Context, doc types.Document) (render.UploadView, error) {
			_, result, err := c.controller.UploadResume(ctx, session.New(), doc)
			if err != nil {
				return render.UploadView{}, err
			}
			return render.Upload(*result), nil
		})
}
