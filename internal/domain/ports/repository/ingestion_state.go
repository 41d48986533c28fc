package repository

import (
	"context"

	"lms-ai-backend/internal/domain/model"
)

// IngestionStateRepository tracks ingestion/transcription progress per
// target entity (lecture unit, FAQ).
type IngestionStateRepository interface {
	SetStatus(ctx context.Context, tx Tx, state *model.IngestionState) error
	GetStatus(ctx context.Context, tx Tx, kind model.JobKind, targetID int64) (*model.IngestionState, error)
	SaveTranscription(ctx context.Context, tx Tx, t *model.Transcription) error
}
