package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/jobs"
)

var _ ArtifactUseCase = (*artifactUC)(nil)

// ArtifactUseCase starts one-shot artifact pipelines (rewriting, rephrasing,
// competency extraction, consistency check). Results arrive as status
// callbacks on the returned job token, which doubles as the fan-out topic.
type ArtifactUseCase interface {
	Start(ctx context.Context, userID int64, kind model.JobKind, courseID, exerciseID int64, payload any) (string, error)
}

type artifactUC struct {
	registry *jobs.Registry
	runner   adapter.PipelineRunner
	limiter  RateLimiter
	limits   map[model.JobFamily]model.RateLimitPolicy
	log      *zerolog.Logger
}

func NewArtifactUseCase(
	registry *jobs.Registry,
	runner adapter.PipelineRunner,
	limiter RateLimiter,
	limits map[model.JobFamily]model.RateLimitPolicy,
	logger *zerolog.Logger,
) *artifactUC {
	l := logger.With().Str("component", "ArtifactUC").Logger()
	return &artifactUC{registry: registry, runner: runner, limiter: limiter, limits: limits, log: &l}
}

func (a *artifactUC) Start(ctx context.Context, userID int64, kind model.JobKind, courseID, exerciseID int64, payload any) (string, error) {
	if kind.Family() != model.FamilyArtifact {
		return "", domain.ErrInvalidArgument
	}

	allowed, err := a.limiter.Allow(ctx, model.ScopeKeyUserFamily(userID, model.FamilyArtifact), a.limits[model.FamilyArtifact])
	if err != nil {
		return "", fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		metrics.IncRateLimitDenied(string(kind))
		return "", domain.ErrRateLimited
	}

	job := a.registry.Create(kind, model.OwnerIDs{
		UserID:     userID,
		CourseID:   courseID,
		ExerciseID: exerciseID,
	})

	err = a.runner.Run(ctx, adapter.ExecutionRequest{
		Token:         job.Token,
		Feature:       kind.Feature(),
		InitialStages: a.runner.InitialStages(kind.Feature()),
		Payload:       payload,
	})
	if err != nil {
		a.registry.Remove(job.Token)
		a.log.Error().Err(err).Str("kind", string(kind)).Msg("pipeline submission failed")
		return "", fmt.Errorf("%w: %v", domain.ErrPipelineUnavailable, err)
	}

	metrics.IncJobStarted(string(kind))
	return job.Token, nil
}
