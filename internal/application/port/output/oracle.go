package output

import (
	"context"

	"shopping-agent/internal/domain/entity"
)

type DecisionRequest struct {
	Goal          string
	Screenshot    *entity.Screenshot
	Labels        entity.LabelMap
	RecentHistory []entity.ActionRecord
	PageContext   string
	URL           string
}

// DecisionOraclePort returns raw model text. Parsing and validation belong to
// the caller.
type DecisionOraclePort interface {
	Decide(ctx context.Context, req DecisionRequest) (string, error)
}
