package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/domain/ports/repository"
	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/jobs"
)

var _ IngestionUseCase = (*ingestionUC)(nil)

type IngestionUseCase interface {
	// StartLectureIngestion submits a lecture unit to the ingestion pipeline
	// and marks it IN_PROGRESS.
	StartLectureIngestion(ctx context.Context, courseID, lectureID, lectureUnitID int64, payload any) error
	StartFaqIngestion(ctx context.Context, courseID, faqID int64, payload any) error
	StartTranscription(ctx context.Context, courseID, lectureID, lectureUnitID int64, payload any) error
	// Status reports the last known ingestion state of a target entity.
	Status(ctx context.Context, kind model.JobKind, targetID int64) (*model.IngestionState, error)
}

type ingestionUC struct {
	states   repository.IngestionStateRepository
	registry *jobs.Registry
	runner   adapter.PipelineRunner
	log      *zerolog.Logger
}

func NewIngestionUseCase(
	states repository.IngestionStateRepository,
	registry *jobs.Registry,
	runner adapter.PipelineRunner,
	logger *zerolog.Logger,
) *ingestionUC {
	l := logger.With().Str("component", "IngestionUC").Logger()
	return &ingestionUC{states: states, registry: registry, runner: runner, log: &l}
}

func (u *ingestionUC) StartLectureIngestion(ctx context.Context, courseID, lectureID, lectureUnitID int64, payload any) error {
	return u.start(ctx, model.JobKindLectureIngestion, model.OwnerIDs{
		CourseID:      courseID,
		LectureID:     lectureID,
		LectureUnitID: lectureUnitID,
	}, lectureUnitID, payload)
}

func (u *ingestionUC) StartFaqIngestion(ctx context.Context, courseID, faqID int64, payload any) error {
	return u.start(ctx, model.JobKindFaqIngestion, model.OwnerIDs{
		CourseID: courseID,
		FaqID:    faqID,
	}, faqID, payload)
}

func (u *ingestionUC) StartTranscription(ctx context.Context, courseID, lectureID, lectureUnitID int64, payload any) error {
	return u.start(ctx, model.JobKindTranscription, model.OwnerIDs{
		CourseID:      courseID,
		LectureID:     lectureID,
		LectureUnitID: lectureUnitID,
	}, lectureUnitID, payload)
}

func (u *ingestionUC) Status(ctx context.Context, kind model.JobKind, targetID int64) (*model.IngestionState, error) {
	if kind.Family() != model.FamilyIngestion {
		return nil, domain.ErrInvalidArgument
	}
	return u.states.GetStatus(ctx, nil, kind, targetID)
}

// start registers the job, flips the target to IN_PROGRESS and submits the
// run. A failed submission rolls both back so the target does not appear
// stuck in progress with no job behind it.
func (u *ingestionUC) start(ctx context.Context, kind model.JobKind, owner model.OwnerIDs, targetID int64, payload any) error {
	job := u.registry.Create(kind, owner)

	if err := u.states.SetStatus(ctx, nil, &model.IngestionState{
		Kind:      kind,
		CourseID:  owner.CourseID,
		TargetID:  targetID,
		Status:    model.IngestionInProgress,
		UpdatedAt: time.Now(),
	}); err != nil {
		u.registry.Remove(job.Token)
		return fmt.Errorf("mark ingestion in progress: %w", err)
	}

	err := u.runner.Run(ctx, adapter.ExecutionRequest{
		Token:         job.Token,
		Feature:       kind.Feature(),
		InitialStages: u.runner.InitialStages(kind.Feature()),
		Payload:       payload,
	})
	if err != nil {
		u.registry.Remove(job.Token)
		if stErr := u.states.SetStatus(ctx, nil, &model.IngestionState{
			Kind:      kind,
			CourseID:  owner.CourseID,
			TargetID:  targetID,
			Status:    model.IngestionFailed,
			Error:     "pipeline submission failed",
			UpdatedAt: time.Now(),
		}); stErr != nil {
			u.log.Error().Err(stErr).Int64("target_id", targetID).Msg("rollback of ingestion state failed")
		}
		u.log.Error().Err(err).Str("kind", string(kind)).Msg("pipeline submission failed")
		return fmt.Errorf("%w: %v", domain.ErrPipelineUnavailable, err)
	}

	metrics.IncJobStarted(string(kind))
	return nil
}
