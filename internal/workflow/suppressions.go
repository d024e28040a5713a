package workflow

import (
	"context"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/gate"
	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/suppression"
)

const expiredComment = "Expired suppression"

// ApplySuppressions pushes the local rules matching the findings to the
// server as analyses. An expired rule resets the analysis when resetting is
// enabled and is skipped otherwise. It returns how many analyses were
// suppressed and how many were reset.
func (r *Runner) ApplySuppressions(ctx context.Context, project *model.Project, findings []model.Finding, set *suppression.Set) (int, int, error) {
	if set.IsEmpty() {
		r.logger.Infow("No suppressions to apply")
		return 0, 0, nil
	}

	now := r.now()
	applied, reset := 0, 0
	for i, f := range findings {
		if err := f.Validate(); err != nil {
			return applied, reset, errors.Wrapf(gate.ErrMalformedFinding, "finding #%d: %s", i+1, err.Error())
		}
		idx, ok := set.FirstMatch(f)
		if !ok {
			continue
		}
		rule := set.Rule(idx)

		disposition := rule.Disposition.Normalized()
		req := model.AnalysisRequest{
			ProjectId:       project.Id,
			ComponentId:     f.Component.Id,
			VulnerabilityId: f.Vulnerability.Id,
			State:           disposition.State,
			Justification:   disposition.Justification,
			Response:        disposition.Response,
			Comment:         rule.Notes,
			Suppressed:      true,
		}

		expired := rule.IsExpired(now)
		if expired {
			if !r.config.ResetExpiredSuppressions {
				continue
			}
			r.logger.Debugw("Resetting expired suppression", "vulnerability", f.Vulnerability.VulnId, "component", f.Component.Name)
			req.State = model.StateNotSet
			req.Justification = model.JustificationNotSet
			req.Response = model.ResponseNotSet
			req.Comment = expiredComment
			req.Suppressed = false
		} else {
			r.logger.Debugw("Applying suppression", "vulnerability", f.Vulnerability.VulnId, "component", f.Component.Name)
		}

		if err := r.service.ApplyAnalysis(ctx, req); err != nil {
			return applied, reset, err
		}
		if expired {
			reset++
		} else {
			applied++
		}
	}

	r.logger.Infow("Applied suppressions", "project", project.String(), "applied", applied, "reset", reset)
	return applied, reset, nil
}

// PushSuppressions applies the configured suppressions file to the current
// findings of the configured project.
func (r *Runner) PushSuppressions(ctx context.Context) (int, int, error) {
	project, err := r.FindProject(ctx)
	if err != nil {
		return 0, 0, err
	}
	findings, err := r.service.Findings(ctx, project.Id)
	if err != nil {
		return 0, 0, err
	}
	return r.ApplySuppressions(ctx, project, findings, r.LoadSuppressions())
}
