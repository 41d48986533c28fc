package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
)

var _ repository.TokenUsageRepository = (*TokenUsageRepo)(nil)

type TokenUsageRepo struct {
	pool *pgxpool.Pool
}

func NewTokenUsageRepo(pool *pgxpool.Pool) *TokenUsageRepo {
	return &TokenUsageRepo{pool: pool}
}

func (r *TokenUsageRepo) SaveAll(ctx context.Context, tx repository.Tx, usages []model.TokenUsage) error {
	if len(usages) == 0 {
		return nil
	}
	const q = `
INSERT INTO token_usages (job_token, message_id, user_id, course_id, exercise_id, model, pipeline, input_tokens, output_tokens, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10,NOW()));`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	for _, u := range usages {
		if _, err := ex.Exec(ctx, q,
			u.JobToken, u.MessageID, u.UserID, u.CourseID, u.ExerciseID,
			u.Model, u.Pipeline, u.InputTokens, u.OutputTokens, u.RecordedAt,
		); err != nil {
			return fmt.Errorf("save token usage: %w", err)
		}
	}
	return nil
}

func (r *TokenUsageRepo) SumForUser(ctx context.Context, tx repository.Tx, userID int64) (int64, int64, error) {
	const q = `SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0)
FROM token_usages WHERE user_id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, 0, err
	}
	var in, out int64
	if err := ex.QueryRow(ctx, q, userID).Scan(&in, &out); err != nil {
		return 0, 0, fmt.Errorf("sum token usage: %w", err)
	}
	return in, out, nil
}
