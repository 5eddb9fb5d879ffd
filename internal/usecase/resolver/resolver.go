package resolver

import (
	"context"
	"fmt"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

const defaultProbeTimeout = 3 * time.Second

// Resolver turns a label into one selector that works on the live DOM.
type Resolver struct {
	probeTimeout time.Duration
	logger       output.LoggerPort
}

func New(logger output.LoggerPort, probeTimeout time.Duration) *Resolver {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Resolver{
		probeTimeout: probeTimeout,
		logger:       logger.WithField("component", "resolver"),
	}
}

// Resolve returns the first candidate that is visible and enabled. When none
// is, it settles for the first candidate whose element exists at all.
func (r *Resolver) Resolve(ctx context.Context, browser output.BrowserPort, label int, labels entity.LabelMap) (string, error) {
	desc, ok := labels.Get(label)
	if !ok {
		return "", fmt.Errorf("%w: label %d is not in the current map", entity.ErrTargetNotFound, label)
	}
	if len(desc.Selectors) == 0 {
		return "", fmt.Errorf("%w: label %d has no candidate selectors", entity.ErrTargetNotFound, label)
	}

	for _, sel := range desc.Selectors {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := browser.WaitVisible(ctx, sel, r.probeTimeout); err != nil {
			r.logger.Debug("Candidate not visible", "label", label, "selector", sel, "error", err)
			continue
		}
		ok, err := browser.IsInteractable(ctx, sel)
		if err != nil || !ok {
			r.logger.Debug("Candidate not interactable", "label", label, "selector", sel, "error", err)
			continue
		}
		r.logger.Debug("Resolved target", "label", label, "selector", sel)
		return sel, nil
	}

	for _, sel := range desc.Selectors {
		exists, err := browser.Exists(ctx, sel)
		if err != nil {
			continue
		}
		if exists {
			r.logger.Warn("Falling back to non-interactable target", "label", label, "selector", sel)
			return sel, nil
		}
	}

	return "", fmt.Errorf("%w: no candidate for label %d matched any element", entity.ErrTargetNotFound, label)
}
