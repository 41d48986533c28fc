package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
)

var _ repository.IngestionStateRepository = (*IngestionStateRepo)(nil)

type IngestionStateRepo struct {
	pool *pgxpool.Pool
}

func NewIngestionStateRepo(pool *pgxpool.Pool) *IngestionStateRepo {
	return &IngestionStateRepo{pool: pool}
}

func (r *IngestionStateRepo) SetStatus(ctx context.Context, tx repository.Tx, state *model.IngestionState) error {
	const q = `
INSERT INTO ingestion_states (kind, target_id, course_id, status, error, updated_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,NOW()))
ON CONFLICT (kind, target_id) DO UPDATE SET
  status = EXCLUDED.status,
  error = EXCLUDED.error,
  updated_at = EXCLUDED.updated_at;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, string(state.Kind), state.TargetID, state.CourseID, string(state.Status), state.Error, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set ingestion status: %w", err)
	}
	return nil
}

func (r *IngestionStateRepo) GetStatus(ctx context.Context, tx repository.Tx, kind model.JobKind, targetID int64) (*model.IngestionState, error) {
	const q = `SELECT kind, target_id, course_id, status, error, updated_at
FROM ingestion_states WHERE kind=$1 AND target_id=$2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var s model.IngestionState
	var k, status string
	err = ex.QueryRow(ctx, q, string(kind), targetID).Scan(&k, &s.TargetID, &s.CourseID, &status, &s.Error, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan ingestion state: %w", err)
	}
	s.Kind = model.JobKind(k)
	s.Status = model.IngestionStatus(status)
	return &s, nil
}

func (r *IngestionStateRepo) SaveTranscription(ctx context.Context, tx repository.Tx, t *model.Transcription) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	const q = `
INSERT INTO transcriptions (lecture_unit_id, language, segments)
VALUES ($1,$2,$3)
ON CONFLICT (lecture_unit_id) DO UPDATE SET
  language = EXCLUDED.language,
  segments = EXCLUDED.segments;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, t.LectureUnitID, t.Language, segments); err != nil {
		return fmt.Errorf("save transcription: %w", err)
	}
	return nil
}
