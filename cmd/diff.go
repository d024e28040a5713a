package cmd

import (
	"github.com/spf13/cobra"

	"github.com/srkgupta/dependency-track-gate/internal/bom"
)

var diffOutput string

var diffCmd = &cobra.Command{
	Use:   "diff <from> <to>",
	Short: "Compare the components of two CycloneDX BOMs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := bom.ReadInventory(args[0])
		if err != nil {
			return err
		}
		to, err := bom.ReadInventory(args[1])
		if err != nil {
			return err
		}
		return writeDiff(cmd, bom.Diff(from, to))
	},
}

var diffRemoteCmd = &cobra.Command{
	Use:   "diff-remote <bom>",
	Short: "Compare a local BOM with the current BOM of the project in Dependency-Track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		result, err := runner.DiffWithRemote(cmd.Context(), args[0])
		if err != nil {
			return finish(err)
		}
		return writeDiff(cmd, result)
	},
}

var downloadBomCmd = &cobra.Command{
	Use:   "download-bom <path>",
	Short: "Download the current BOM of the project as CycloneDX JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		return finish(runner.DownloadBom(cmd.Context(), args[0]))
	},
}

func writeDiff(cmd *cobra.Command, result *bom.DiffResult) error {
	if diffOutput == "" {
		return bom.WriteJSON(cmd.OutOrStdout(), result)
	}
	cmd.Println(result.String())
	return bom.WriteFile(diffOutput, result)
}

func init() {
	for _, c := range []*cobra.Command{diffCmd, diffRemoteCmd} {
		c.Flags().StringVarP(&diffOutput, "output", "o", "", "Write the diff to a file, as JSON when it ends in .json and as text otherwise")
	}
	rootCmd.AddCommand(diffCmd, diffRemoteCmd, downloadBomCmd)
}
