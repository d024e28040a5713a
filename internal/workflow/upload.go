package workflow

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/gate"
	"github.com/srkgupta/dependency-track-gate/internal/model"
)

func encodeArtifact(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "could not read artifact")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// UploadBom uploads the BOM at path to the configured project and, when poll
// is set, waits for it to be processed and evaluates the gate. A token that
// is still processing when the timeout elapses ends the run without an
// evaluation and without an error.
func (r *Runner) UploadBom(ctx context.Context, path string, poll bool) (*Outcome, error) {
	encoded, err := encodeArtifact(path)
	if err != nil {
		return nil, err
	}

	project, err := r.ResolveProject(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Infow("Uploading BOM", "project", project.String(), "path", path)
	token, err := r.service.UploadBom(ctx, model.BomSubmitRequest{
		ProjectId:      &project.Id,
		ProjectName:    project.Name,
		ProjectVersion: project.Version,
		Bom:            encoded,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debugw("BOM uploaded", "token", token)

	if r.config.TokenFile != "" {
		if err := WriteToken(r.config.TokenFile, token); err != nil {
			return nil, err
		}
		r.logger.Infow("Token has been written", "path", r.config.TokenFile)
	}

	outcome := &Outcome{Project: project, Token: token}
	if !poll {
		r.logger.Infow("Token polling is disabled, nothing more to do", "token", token)
		return outcome, nil
	}
	return r.awaitAndEvaluate(ctx, outcome)
}

// CheckToken waits for a previously uploaded BOM and evaluates the gate.
func (r *Runner) CheckToken(ctx context.Context, token uuid.UUID) (*Outcome, error) {
	project, err := r.FindProject(ctx)
	if err != nil {
		return nil, err
	}
	return r.awaitAndEvaluate(ctx, &Outcome{Project: project, Token: token})
}

func (r *Runner) awaitAndEvaluate(ctx context.Context, outcome *Outcome) (*Outcome, error) {
	r.logger.Infow("Polling token", "token", outcome.Token, "timeout", r.config.TokenTimeout.String())
	processed, err := r.service.WaitForToken(ctx, outcome.Token, r.config.TokenTimeout, r.config.TokenInterval)
	if err != nil {
		return nil, err
	}
	if !processed {
		r.logger.Infow("Timeout while waiting for BOM token, bailing out", "token", outcome.Token)
		return outcome, nil
	}

	evaluated, err := r.Evaluate(ctx, outcome.Project)
	if err != nil {
		return nil, err
	}
	evaluated.Token = outcome.Token
	return evaluated, nil
}

// UploadScan uploads a scan result. The server creates the project when
// auto creation is enabled.
func (r *Runner) UploadScan(ctx context.Context, path string) (uuid.UUID, error) {
	encoded, err := encodeArtifact(path)
	if err != nil {
		return uuid.Nil, err
	}

	r.logger.Infow("Uploading scan", "name", r.config.ProjectName, "version", r.config.ProjectVersion, "path", path)
	token, err := r.service.UploadScan(ctx, model.ScanSubmitRequest{
		ProjectName:    r.config.ProjectName,
		ProjectVersion: r.config.ProjectVersion,
		AutoCreate:     r.config.AutoCreate,
		Scan:           encoded,
	})
	if err != nil {
		return uuid.Nil, err
	}
	r.logger.Infow("Scan uploaded", "token", token)
	return token, nil
}

// CheckMetrics evaluates the gate on the current state of the project and
// also applies the thresholds to its metrics snapshot.
func (r *Runner) CheckMetrics(ctx context.Context) (*Outcome, error) {
	project, err := r.FindProject(ctx)
	if err != nil {
		return nil, err
	}
	outcome, err := r.Evaluate(ctx, project)
	if err != nil {
		return nil, err
	}

	thresholds, err := r.config.GateThresholds()
	if err != nil {
		return nil, err
	}
	outcome.MetricsResult = gate.CheckMetrics(*outcome.Metrics, thresholds)
	return outcome, nil
}

// WriteToken stores a token so a later run can check it.
func WriteToken(path string, token uuid.UUID) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create token directory")
	}
	if err := os.WriteFile(path, []byte(token.String()), 0o644); err != nil {
		return errors.Wrap(err, "failed to write token")
	}
	return nil
}

// ReadToken reads a token written by WriteToken.
func ReadToken(path string) (uuid.UUID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to read token")
	}
	token, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid token in %s", path)
	}
	return token, nil
}
