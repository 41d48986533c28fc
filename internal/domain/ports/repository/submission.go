package repository

import (
	"context"

	"lms-ai-backend/internal/domain/model"
)

// SubmissionRepository is a read-only port over exercise submissions, used
// by the proactive event predicates.
type SubmissionRepository interface {
	// Latest returns up to n submissions for (exercise, user), newest first.
	Latest(ctx context.Context, tx Tx, exerciseID, userID int64, n int) ([]model.Submission, error)
}
