// Package config resolves the gate settings from defaults, a YAML file and
// DTRACK_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/srkgupta/dependency-track-gate/internal/gate"
	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/retry"
)

// Configuration captures everything a run needs. The zero value is not
// useful, start from Default.
type Configuration struct {
	// DependencyTrackUrl is the frontend, used for links.
	DependencyTrackUrl    string `yaml:"url"`
	// DependencyTrackApiUrl defaults to DependencyTrackUrl.
	DependencyTrackApiUrl string `yaml:"apiUrl"`
	DependencyTrackApiKey string `yaml:"apiKey"`

	ProjectName     string `yaml:"projectName"`
	ProjectVersion  string `yaml:"projectVersion"`
	ParentName      string `yaml:"parentName"`
	ParentVersion   string `yaml:"parentVersion"`
	AutoCreate      bool   `yaml:"autoCreate"`
	CollectionLogic string `yaml:"collectionLogic"`
	CollectionTag   string `yaml:"collectionTag"`

	SuppressionsFile           string `yaml:"suppressions"`
	UploadMatchingSuppressions bool   `yaml:"uploadMatchingSuppressions"`
	ResetExpiredSuppressions   bool   `yaml:"resetExpiredSuppressions"`
	CleanupSuppressions        bool   `yaml:"cleanupSuppressions"`
	CleanupFile                string `yaml:"cleanupFile"`

	// Preset, when set, takes precedence over Thresholds.
	Preset      string          `yaml:"preset"`
	Thresholds  gate.Thresholds `yaml:"thresholds"`
	FailOnError bool            `yaml:"failOnError"`

	TokenTimeout      time.Duration `yaml:"tokenTimeout"`
	TokenInterval     time.Duration `yaml:"tokenInterval"`
	TokenFile         string        `yaml:"tokenFile"`
	MetricsDelay      time.Duration `yaml:"metricsDelay"`
	MetricsRetryLimit int           `yaml:"metricsRetryLimit"`

	MattermostWebhookUrl string `yaml:"mattermostWebhookUrl"`
	Debug                bool   `yaml:"debug"`
}

func Default() *Configuration {
	return &Configuration{
		AutoCreate:        true,
		FailOnError:       true,
		CleanupFile:       "effective-suppressions.json",
		TokenTimeout:      5 * time.Minute,
		TokenInterval:     5 * time.Second,
		MetricsDelay:      10 * time.Second,
		MetricsRetryLimit: 6,
		CollectionLogic:   string(model.CollectionLogicNone),
	}
}

// Load reads the optional YAML file at path on top of the defaults and then
// applies the environment.
func Load(path string) (*Configuration, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the settings present in a YAML file. Unknown keys are
// rejected.
func (c *Configuration) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

// ApplyEnv overlays the DTRACK_* variables that are set and not empty.
func (c *Configuration) ApplyEnv() error {
	strs := map[string]*string{
		"DTRACK_URL":                    &c.DependencyTrackUrl,
		"DTRACK_API_URL":                &c.DependencyTrackApiUrl,
		"DTRACK_API_KEY":                &c.DependencyTrackApiKey,
		"DTRACK_PROJECT_NAME":           &c.ProjectName,
		"DTRACK_PROJECT_VERSION":        &c.ProjectVersion,
		"DTRACK_PARENT_NAME":            &c.ParentName,
		"DTRACK_PARENT_VERSION":         &c.ParentVersion,
		"DTRACK_COLLECTION_LOGIC":       &c.CollectionLogic,
		"DTRACK_COLLECTION_TAG":         &c.CollectionTag,
		"DTRACK_SUPPRESSIONS":           &c.SuppressionsFile,
		"DTRACK_CLEANUP_FILE":           &c.CleanupFile,
		"DTRACK_PRESET":                 &c.Preset,
		"DTRACK_TOKEN_FILE":             &c.TokenFile,
		"DTRACK_MATTERMOST_WEBHOOK_URL": &c.MattermostWebhookUrl,
	}
	for key, target := range strs {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	bools := map[string]*bool{
		"DTRACK_AUTO_CREATE":                  &c.AutoCreate,
		"DTRACK_UPLOAD_MATCHING_SUPPRESSIONS": &c.UploadMatchingSuppressions,
		"DTRACK_RESET_EXPIRED_SUPPRESSIONS":   &c.ResetExpiredSuppressions,
		"DTRACK_CLEANUP_SUPPRESSIONS":         &c.CleanupSuppressions,
		"DTRACK_FAIL_ON_ERROR":                &c.FailOnError,
		"DTRACK_DEBUG":                        &c.Debug,
	}
	for key, target := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s", key)
			}
			*target = b
		}
	}

	ints := map[string]*int{
		"DTRACK_THRESHOLD_CRITICAL":  &c.Thresholds.Critical,
		"DTRACK_THRESHOLD_HIGH":      &c.Thresholds.High,
		"DTRACK_THRESHOLD_MEDIUM":    &c.Thresholds.Medium,
		"DTRACK_THRESHOLD_LOW":       &c.Thresholds.Low,
		"DTRACK_METRICS_RETRY_LIMIT": &c.MetricsRetryLimit,
	}
	for key, target := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s", key)
			}
			*target = n
		}
	}

	durations := map[string]*time.Duration{
		"DTRACK_TOKEN_TIMEOUT":  &c.TokenTimeout,
		"DTRACK_TOKEN_INTERVAL": &c.TokenInterval,
		"DTRACK_METRICS_DELAY":  &c.MetricsDelay,
	}
	for key, target := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s", key)
			}
			*target = d
		}
	}
	return nil
}

// ApiUrl is the base of REST calls.
func (c *Configuration) ApiUrl() string {
	if c.DependencyTrackApiUrl != "" {
		return c.DependencyTrackApiUrl
	}
	return c.DependencyTrackUrl
}

// GateThresholds resolves the preset or the explicit thresholds.
func (c *Configuration) GateThresholds() (gate.Thresholds, error) {
	if c.Preset != "" {
		return gate.Preset(c.Preset)
	}
	return c.Thresholds, c.Thresholds.Validate()
}

func (c *Configuration) MetricsPolicy() retry.Policy {
	return retry.Policy{Delay: c.MetricsDelay, MaxAttempts: c.MetricsRetryLimit}
}

// IsValid checks the settings needed to talk to the server.
func (c *Configuration) IsValid() error {
	if c.ApiUrl() == "" {
		return errors.New("must have a Dependency-Track url")
	}
	if c.DependencyTrackApiKey == "" {
		return errors.New("must have a Dependency-Track api key")
	}
	if c.ProjectName == "" {
		return errors.New("must have a project name")
	}
	if _, err := c.GateThresholds(); err != nil {
		return err
	}
	if c.TokenTimeout <= 0 || c.TokenInterval <= 0 {
		return errors.New("token timeout and interval must be positive")
	}
	if c.MetricsRetryLimit < 0 || c.MetricsDelay < 0 {
		return errors.New("metrics retry settings must not be negative")
	}
	switch model.CollectionLogic(c.CollectionLogic) {
	case model.CollectionLogicNone, model.CollectionLogicAggregateAll, model.CollectionLogicLatestChildren:
	case model.CollectionLogicAggregateWithTag:
		if c.CollectionTag == "" {
			return errors.New("collection logic with tag needs a collection tag")
		}
	default:
		return errors.Errorf("unknown collection logic %q", c.CollectionLogic)
	}
	return nil
}

// String renders the effective settings with the api key masked.
func (c *Configuration) String() string {
	var b strings.Builder
	b.WriteString("--- Configuration ---")
	line := func(label string, value interface{}) {
		fmt.Fprintf(&b, "\n- %s: %v", label, value)
	}
	line("Dependency-Track", c.ApiUrl())
	line("API key", mask(c.DependencyTrackApiKey))
	line("Project", strings.TrimSuffix(c.ProjectName+":"+c.ProjectVersion, ":"))
	if c.ParentName != "" {
		line("Parent", strings.TrimSuffix(c.ParentName+":"+c.ParentVersion, ":"))
	}
	line("Suppressions", valueOr(c.SuppressionsFile, "none"))
	line("Fail on error", c.FailOnError)
	line("Token timeout", c.TokenTimeout)
	return b.String()
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-4)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
