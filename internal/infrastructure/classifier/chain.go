package classifier

import (
	"context"
	"errors"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

var _ output.CheckoutClassifierPort = (*Chain)(nil)

// Chain tries each classifier in order and returns the first answer.
type Chain struct {
	classifiers []output.CheckoutClassifierPort
	logger      output.LoggerPort
}

func NewChain(logger output.LoggerPort, classifiers ...output.CheckoutClassifierPort) *Chain {
	kept := make([]output.CheckoutClassifierPort, 0, len(classifiers))
	for _, c := range classifiers {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &Chain{classifiers: kept, logger: logger}
}

func (c *Chain) Classify(ctx context.Context, req output.ClassifyRequest) (*entity.CheckoutDetection, error) {
	var errs []error
	for i, cl := range c.classifiers {
		det, err := cl.Classify(ctx, req)
		if err == nil {
			return det, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Checkout classifier failed, trying next", "index", i, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no checkout classifier configured")
	}
	return nil, errors.Join(errs...)
}
