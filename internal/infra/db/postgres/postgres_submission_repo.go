package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
)

var _ repository.SubmissionRepository = (*SubmissionRepo)(nil)

// SubmissionRepo reads exercise submissions maintained by the rest of the
// LMS backend. This service never writes submissions.
type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

func (r *SubmissionRepo) Latest(ctx context.Context, tx repository.Tx, exerciseID, userID int64, n int) ([]model.Submission, error) {
	const q = `SELECT id, exercise_id, user_id, score, successful, submitted_at
FROM submissions WHERE exercise_id=$1 AND user_id=$2
ORDER BY submitted_at DESC LIMIT $3;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, exerciseID, userID, n)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.ExerciseID, &s.UserID, &s.Score, &s.Successful, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
