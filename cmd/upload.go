package cmd

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/srkgupta/dependency-track-gate/internal/workflow"
)

var (
	pollToken  bool
	tokenValue string
)

var uploadBomCmd = &cobra.Command{
	Use:   "upload-bom <bom>",
	Short: "Upload a CycloneDX BOM and apply the security gate",
	Long: "Uploads the BOM to the configured project, waits for Dependency-Track to process it and applies the security gate to the findings.\n" +
		"A BOM still being processed when the token timeout elapses ends the run without a decision.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		return finishOutcome(runner.UploadBom(cmd.Context(), args[0], pollToken))
	},
}

var uploadScanCmd = &cobra.Command{
	Use:   "upload-scan <scan>",
	Short: "Upload a scan result to the configured project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		token, err := runner.UploadScan(cmd.Context(), args[0])
		if err != nil {
			return finish(err)
		}
		cmd.Println("Token:", token)
		return nil
	},
}

var checkTokenCmd = &cobra.Command{
	Use:   "check-token",
	Short: "Wait for a previously uploaded BOM and apply the security gate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := resolveToken()
		if err != nil {
			return err
		}
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		return finishOutcome(runner.CheckToken(cmd.Context(), token))
	},
}

// resolveToken prefers --token over the token file.
func resolveToken() (uuid.UUID, error) {
	if tokenValue != "" {
		token, err := uuid.Parse(tokenValue)
		return token, errors.Wrap(err, "invalid --token")
	}
	if cfg.TokenFile == "" {
		return uuid.Nil, errors.New("either --token or --token-file is required")
	}
	logger.Infow("Loading token", "path", cfg.TokenFile)
	return workflow.ReadToken(cfg.TokenFile)
}

func init() {
	uploadBomCmd.Flags().BoolVar(&pollToken, "poll", true, "Wait for the BOM to be processed and apply the security gate")
	uploadBomCmd.Flags().StringVar(&overrides.ParentName, "parent-name", "", "Parent project name")
	uploadBomCmd.Flags().StringVar(&overrides.ParentVersion, "parent-version", "", "Parent project version")
	uploadBomCmd.Flags().BoolVar(&overrides.UploadMatchingSuppressions, "upload-suppressions", false, "Apply matching suppressions in Dependency-Track")
	uploadBomCmd.Flags().BoolVar(&overrides.ResetExpiredSuppressions, "reset-expired", false, "Reset analyses of expired suppressions in Dependency-Track")
	uploadBomCmd.Flags().BoolVar(&overrides.CleanupSuppressions, "cleanup", false, "Write the effective suppressions to --cleanup-file")
	uploadBomCmd.Flags().StringVar(&overrides.CleanupFile, "cleanup-file", "", "Effective suppressions output file")

	for _, c := range []*cobra.Command{uploadBomCmd, checkTokenCmd} {
		c.Flags().StringVar(&overrides.TokenFile, "token-file", "", "File the BOM token is written to and read from")
		c.Flags().DurationVar(&overrides.TokenTimeout, "token-timeout", 0, "How long to wait for the BOM to be processed")
	}
	checkTokenCmd.Flags().StringVar(&tokenValue, "token", "", "Token to check, takes precedence over --token-file")

	rootCmd.AddCommand(uploadBomCmd, uploadScanCmd, checkTokenCmd)
}
