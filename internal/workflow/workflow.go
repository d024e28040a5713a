// Package workflow drives a gate run against a Dependency-Track server:
// upload, wait for processing, fetch findings and metrics, evaluate, persist
// and notify.
package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/srkgupta/dependency-track-gate/internal/config"
	"github.com/srkgupta/dependency-track-gate/internal/gate"
	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/retry"
	"github.com/srkgupta/dependency-track-gate/internal/suppression"
)

// Service is the part of the Dependency-Track API a run uses.
// *dtrack.Client implements it.
type Service interface {
	UploadBom(ctx context.Context, req model.BomSubmitRequest) (uuid.UUID, error)
	UploadScan(ctx context.Context, req model.ScanSubmitRequest) (uuid.UUID, error)
	WaitForToken(ctx context.Context, token uuid.UUID, timeout, interval time.Duration) (bool, error)
	LookupProject(ctx context.Context, name, version string) (*model.Project, error)
	CreateProject(ctx context.Context, project model.Project) (*model.Project, error)
	PatchProject(ctx context.Context, id uuid.UUID, patch model.ProjectPatch) (*model.Project, error)
	Findings(ctx context.Context, projectId uuid.UUID) ([]model.Finding, error)
	WatchMetrics(ctx context.Context, projectId uuid.UUID, policy retry.Policy) <-chan retry.Result[*model.ProjectMetrics]
	ApplyAnalysis(ctx context.Context, req model.AnalysisRequest) error
	DownloadBom(ctx context.Context, projectId uuid.UUID) ([]byte, error)
}

// Notifier publishes a gate decision.
type Notifier interface {
	NotifyGate(ctx context.Context, project *model.Project, report *gate.Report) error
}

type Runner struct {
	service  Service
	config   *config.Configuration
	notifier Notifier
	logger   *zap.SugaredLogger
	out      io.Writer

	// Now is the clock used for suppression expiration.
	Now func() time.Time
}

// NewRunner wires a run. notifier may be nil. Summaries are written to out.
func NewRunner(service Service, cfg *config.Configuration, notifier Notifier, logger *zap.SugaredLogger, out io.Writer) *Runner {
	return &Runner{
		service:  service,
		config:   cfg,
		notifier: notifier,
		logger:   logger,
		out:      out,
		Now:      time.Now,
	}
}

// Outcome collects what a run produced.
type Outcome struct {
	Project *model.Project
	Token   uuid.UUID
	// Processed is false when the server had not finished processing the
	// upload in time. Nothing was evaluated then.
	Processed bool

	Findings      []model.Finding
	Metrics       *model.ProjectMetrics
	Report        *gate.Report
	MetricsResult *gate.MetricsResult
	Applied       int
	Reset         int
}

// Err is the gate rejection of the run, if any.
func (o *Outcome) Err() error {
	if o.Report != nil && !o.Report.Passed {
		return o.Report.Err()
	}
	if o.MetricsResult != nil && !o.MetricsResult.Passed {
		parts := make([]string, 0, len(o.MetricsResult.Violations))
		for _, v := range o.MetricsResult.Violations {
			parts = append(parts, v.String())
		}
		return errors.WithMessage(gate.ErrGateFailed, "metrics exceed thresholds ("+strings.Join(parts, ", ")+")")
	}
	return nil
}

func (r *Runner) print(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// LoadSuppressions reads the configured suppressions file. Problems with the
// file are logged and yield an empty set.
func (r *Runner) LoadSuppressions() *suppression.Set {
	return suppression.Load(r.config.SuppressionsFile, r.logger)
}

// Evaluate fetches the findings and metrics of a processed project and runs
// the security gate on them.
func (r *Runner) Evaluate(ctx context.Context, project *model.Project) (*Outcome, error) {
	outcome := &Outcome{Project: project, Processed: true}
	set := r.LoadSuppressions()

	thresholds, err := r.config.GateThresholds()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Metrics may take a while to be computed, wait for them while the
	// findings load.
	r.logger.Infow("Loading metrics", "project", project.String(),
		"retryDelay", r.config.MetricsDelay.String(),
		"retryLimit", r.config.MetricsRetryLimit)
	pending := r.service.WatchMetrics(ctx, project.Id, r.config.MetricsPolicy())

	r.logger.Infow("Loading findings", "project", project.String())
	findings, err := r.service.Findings(ctx, project.Id)
	if err != nil {
		return nil, err
	}
	outcome.Findings = findings
	r.print(gate.SummarizeFindings(findings).String())

	result := <-pending
	if result.Err != nil {
		return nil, errors.WithMessagef(result.Err, "no metrics for project %s", project.String())
	}
	metrics := result.Value
	outcome.Metrics = metrics
	r.print(gate.PrintMetrics(*metrics))

	now := r.now()
	r.print(thresholds.String())
	r.print(set.Print(now))

	if r.config.UploadMatchingSuppressions {
		outcome.Applied, outcome.Reset, err = r.ApplySuppressions(ctx, project, findings, set)
		if err != nil {
			return nil, err
		}
	}

	g := &gate.Gate{Thresholds: thresholds, Now: func() time.Time { return now }}
	report, err := g.Evaluate(findings, set)
	if err != nil {
		return nil, err
	}
	outcome.Report = report
	r.print(report.Details())
	r.print(report.Summary())

	if r.config.CleanupSuppressions && r.config.CleanupFile != "" {
		r.logger.Infow("Writing effective suppressions", "path", r.config.CleanupFile, "count", report.EffectiveSuppressions.Len())
		if err := suppression.Write(r.config.CleanupFile, report.EffectiveSuppressions); err != nil {
			return nil, err
		}
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyGate(ctx, project, report); err != nil {
			r.logger.Warnw("Failed to notify gate decision", "error", err.Error())
		}
	}
	return outcome, nil
}
