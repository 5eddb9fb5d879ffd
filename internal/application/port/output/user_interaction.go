package output

import (
	"context"

	"shopping-agent/internal/domain/entity"
)

type UserInteractionPort interface {
	AskApproval(ctx context.Context, req entity.ApprovalRequest) (bool, error)

	ShowEvent(ctx context.Context, ev entity.Event)
}
