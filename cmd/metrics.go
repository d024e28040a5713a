package cmd

import (
	"github.com/spf13/cobra"
)

var checkMetricsCmd = &cobra.Command{
	Use:   "check-metrics",
	Short: "Apply the security gate to the current findings and metrics of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		return finishOutcome(runner.CheckMetrics(cmd.Context()))
	},
}

var applySuppressionsCmd = &cobra.Command{
	Use:   "apply-suppressions",
	Short: "Apply the local suppressions to the project in Dependency-Track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cmd)
		if err != nil {
			return err
		}
		applied, reset, err := runner.PushSuppressions(cmd.Context())
		if err != nil {
			return finish(err)
		}
		cmd.Printf("Applied %d suppression(s), reset %d expired suppression(s)\n", applied, reset)
		return nil
	},
}

func init() {
	applySuppressionsCmd.Flags().BoolVar(&overrides.ResetExpiredSuppressions, "reset-expired", false, "Reset analyses of expired suppressions")
	rootCmd.AddCommand(checkMetricsCmd, applySuppressionsCmd)
}
