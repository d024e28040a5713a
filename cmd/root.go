package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srkgupta/dependency-track-gate/internal/config"
	"github.com/srkgupta/dependency-track-gate/internal/dtrack"
	"github.com/srkgupta/dependency-track-gate/internal/logging"
	"github.com/srkgupta/dependency-track-gate/internal/notify"
	"github.com/srkgupta/dependency-track-gate/internal/workflow"
)

var (
	configFile string
	overrides  = config.Default()

	cfg    *config.Configuration
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:               "dtrack-gate",
	Short:             "Security gate for Dependency-Track",
	Long:              "Uploads BOMs to Dependency-Track, waits for them to be analysed and fails the build when the findings exceed the configured thresholds.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	flags.BoolVar(&overrides.Debug, "debug", false, "Debug logging")

	flags.StringVar(&overrides.DependencyTrackUrl, "url", "", "Dependency-Track URL")
	flags.StringVar(&overrides.DependencyTrackApiUrl, "api-url", "", "Dependency-Track API URL, defaults to --url")
	flags.StringVar(&overrides.DependencyTrackApiKey, "api-key", "", "Dependency-Track API key")
	flags.StringVar(&overrides.ProjectName, "project-name", "", "Project name")
	flags.StringVar(&overrides.ProjectVersion, "project-version", "", "Project version")
	flags.StringVar(&overrides.SuppressionsFile, "suppressions", "", "Suppressions file (JSON or YAML)")
	flags.BoolVar(&overrides.FailOnError, "fail-on-error", true, "Exit with an error when the gate rejects the build")
	flags.StringVar(&overrides.Preset, "preset", "", "Threshold preset, takes precedence over the threshold flags")
	flags.IntVar(&overrides.Thresholds.Critical, "critical", 0, "Allowed critical findings")
	flags.IntVar(&overrides.Thresholds.High, "high", 0, "Allowed high findings")
	flags.IntVar(&overrides.Thresholds.Medium, "medium", 0, "Allowed medium findings")
	flags.IntVar(&overrides.Thresholds.Low, "low", 0, "Allowed low findings")
	flags.StringVar(&overrides.MattermostWebhookUrl, "mattermost-webhook", "", "Mattermost incoming webhook for gate decisions")
}

// Execute runs the command line. SIGINT and SIGTERM cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// setup resolves the configuration from defaults, file, environment and the
// flags set on the command line, in that order, and builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, loaded)
	cfg = loaded

	logger, err = logging.New(cfg.Debug)
	return err
}

func applyFlags(cmd *cobra.Command, c *config.Configuration) {
	bindings := map[string]func(){
		"debug":               func() { c.Debug = overrides.Debug },
		"url":                 func() { c.DependencyTrackUrl = overrides.DependencyTrackUrl },
		"api-url":             func() { c.DependencyTrackApiUrl = overrides.DependencyTrackApiUrl },
		"api-key":             func() { c.DependencyTrackApiKey = overrides.DependencyTrackApiKey },
		"project-name":        func() { c.ProjectName = overrides.ProjectName },
		"project-version":     func() { c.ProjectVersion = overrides.ProjectVersion },
		"suppressions":        func() { c.SuppressionsFile = overrides.SuppressionsFile },
		"fail-on-error":       func() { c.FailOnError = overrides.FailOnError },
		"preset":              func() { c.Preset = overrides.Preset },
		"critical":            func() { c.Thresholds.Critical = overrides.Thresholds.Critical },
		"high":                func() { c.Thresholds.High = overrides.Thresholds.High },
		"medium":              func() { c.Thresholds.Medium = overrides.Thresholds.Medium },
		"low":                 func() { c.Thresholds.Low = overrides.Thresholds.Low },
		"mattermost-webhook":  func() { c.MattermostWebhookUrl = overrides.MattermostWebhookUrl },
		"parent-name":         func() { c.ParentName = overrides.ParentName },
		"parent-version":      func() { c.ParentVersion = overrides.ParentVersion },
		"token-file":          func() { c.TokenFile = overrides.TokenFile },
		"token-timeout":       func() { c.TokenTimeout = overrides.TokenTimeout },
		"upload-suppressions": func() { c.UploadMatchingSuppressions = overrides.UploadMatchingSuppressions },
		"reset-expired":       func() { c.ResetExpiredSuppressions = overrides.ResetExpiredSuppressions },
		"cleanup":             func() { c.CleanupSuppressions = overrides.CleanupSuppressions },
		"cleanup-file":        func() { c.CleanupFile = overrides.CleanupFile },
	}
	for name, apply := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
}

// newRunner validates the configuration and connects to the server.
func newRunner(cmd *cobra.Command) (*workflow.Runner, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, errors.WithMessage(err, "invalid configuration")
	}
	client, err := dtrack.New(cfg.ApiUrl(), cfg.DependencyTrackApiKey, logger)
	if err != nil {
		return nil, err
	}
	notifier := notify.NewMattermost(cfg.MattermostWebhookUrl, cfg.DependencyTrackUrl, nil, logger)

	out := cmd.OutOrStdout()
	cmd.Println(cfg.String())
	return workflow.NewRunner(client, cfg, notifier, logger, out), nil
}

// finish turns the result of a run into the exit status. With fail-on-error
// disabled, failures are only logged.
func finish(err error) error {
	if err == nil {
		return nil
	}
	if !cfg.FailOnError {
		logger.Warnw("Ignoring failure, fail-on-error is disabled", "error", err.Error())
		return nil
	}
	return err
}

// finishOutcome is finish for runs that may end with a gate decision.
func finishOutcome(outcome *workflow.Outcome, err error) error {
	if err != nil {
		return finish(err)
	}
	return finish(outcome.Err())
}
