package repository

import (
	"context"

	"lms-ai-backend/internal/domain/model"
)

// TokenUsageRepository records LLM cost entries reported by the runtime.
type TokenUsageRepository interface {
	SaveAll(ctx context.Context, tx Tx, usages []model.TokenUsage) error
	SumForUser(ctx context.Context, tx Tx, userID int64) (in, out int64, err error)
}
