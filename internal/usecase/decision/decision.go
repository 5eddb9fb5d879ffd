package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/application/service"
	"shopping-agent/internal/domain/entity"
)

// Decider asks the oracle for the next action and never returns one it has
// not validated against the current label map.
type Decider struct {
	oracle  output.DecisionOraclePort
	retry   service.RetryPolicy
	logger  output.LoggerPort
	metrics output.MetricsPort
}

func New(oracle output.DecisionOraclePort, retry service.RetryPolicy, logger output.LoggerPort, metrics output.MetricsPort) *Decider {
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	d := &Decider{
		oracle:  oracle,
		logger:  logger.WithField("component", "decision"),
		metrics: metrics,
	}
	userHook := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		d.logger.Warn("Decision attempt failed, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
		if userHook != nil {
			userHook(attempt, err, delay)
		}
	}
	d.retry = retry
	return d
}

func (d *Decider) Decide(ctx context.Context, req output.DecisionRequest) (entity.Action, error) {
	action, err := service.Retry(ctx, d.retry, func(ctx context.Context) (entity.Action, error) {
		raw, err := d.oracle.Decide(ctx, req)
		if err == nil && strings.TrimSpace(raw) == "" {
			err = errOracleEmpty
		}
		if err != nil {
			d.metrics.OracleAttempt(false)
			return entity.Action{}, err
		}

		a, err := ParseAction(raw)
		if err == nil {
			err = Validate(a, req.Labels)
		}
		if err != nil {
			d.metrics.OracleAttempt(false)
			d.logger.Debug("Rejected oracle output", "raw", truncate(raw, 300), "error", err)
			return entity.Action{}, err
		}

		d.metrics.OracleAttempt(true)
		return a, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return entity.Action{}, ctxErr
		}
		return entity.Action{}, fmt.Errorf("%w: %w", entity.ErrDecision, err)
	}

	d.logger.Info("Decision", "action", action.String(), "reasoning", action.Reasoning)
	return action, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
