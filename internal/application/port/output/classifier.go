package output

import (
	"context"

	"shopping-agent/internal/domain/entity"
)

type ClassifyRequest struct {
	Screenshot *entity.Screenshot
	URL        string
	PageHTML   string
}

type CheckoutClassifierPort interface {
	Classify(ctx context.Context, req ClassifyRequest) (*entity.CheckoutDetection, error)
}
