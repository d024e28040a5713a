package dtrack

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/retry"
)

// DefaultPollInterval separates two token status checks.
const DefaultPollInterval = 5 * time.Second

// WaitForToken polls the token until the server reports it processed or the
// timeout elapses. A timeout is inconclusive: it yields false without an
// error. Cancelling ctx itself is reported as an error.
func (c *Client) WaitForToken(ctx context.Context, token uuid.UUID, timeout, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempt := 0
	_, err := retry.Do(pollCtx, func(ctx context.Context) (bool, error) {
		attempt++
		status, err := c.TokenStatus(ctx, token)
		if err != nil {
			return false, err
		}
		c.logger.Debugw("Checked token", "token", token, "attempt", attempt, "processing", status.Processing)
		return status.Processing, nil
	}, func(processing bool) bool {
		return processing
	}, retry.Policy{Delay: interval, MaxAttempts: math.MaxInt})

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() == nil && pollCtx.Err() != nil:
		c.logger.Warnw("Token still processing when the timeout elapsed", "token", token, "timeout", timeout.String())
		return false, nil
	default:
		return false, err
	}
}

// MetricsWithRetry fetches the current metrics, retrying while the server
// has none yet or answers with a transient failure.
func (c *Client) MetricsWithRetry(ctx context.Context, projectId uuid.UUID, policy retry.Policy) (*model.ProjectMetrics, error) {
	metrics, err := retry.Do(ctx, c.metricsAttempt(projectId), metricsMissing, policy)
	if err != nil {
		return nil, errors.WithMessagef(err, "no metrics for project %s", projectId)
	}
	return metrics, nil
}

// WatchMetrics runs the same retry chain as MetricsWithRetry in the
// background. The channel receives one Result.
func (c *Client) WatchMetrics(ctx context.Context, projectId uuid.UUID, policy retry.Policy) <-chan retry.Result[*model.ProjectMetrics] {
	return retry.Go(ctx, c.metricsAttempt(projectId), metricsMissing, policy)
}

func (c *Client) metricsAttempt(projectId uuid.UUID) func(ctx context.Context) (*model.ProjectMetrics, error) {
	return func(ctx context.Context) (*model.ProjectMetrics, error) {
		metrics, err := c.CurrentMetrics(ctx, projectId)
		if err != nil && IsTransient(err) {
			c.logger.Warnw("Retrying metrics after transient failure", "project", projectId, "error", err.Error())
			return nil, nil
		}
		return metrics, err
	}
}

func metricsMissing(metrics *model.ProjectMetrics) bool {
	return metrics == nil
}
