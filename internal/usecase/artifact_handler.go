package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
	"lms-ai-backend/internal/infra/metrics"
)

// artifactStatusUpdate is the callback payload of pipelines that produce a
// one-shot artifact (competency extraction, consistency check, rephrasing,
// rewriting). The artifact itself is forwarded raw to the subscriber.
type artifactStatusUpdate struct {
	Result json.RawMessage    `json:"result,omitempty"`
	Stages []model.Stage      `json:"stages"`
	Tokens []model.TokenUsage `json:"tokens,omitempty"`
}

func (u *artifactStatusUpdate) StageList() []model.Stage { return u.Stages }

var _ StatusHandler = (*ArtifactStatusHandler)(nil)

type ArtifactStatusHandler struct {
	costs repository.TokenUsageRepository
	log   *zerolog.Logger
}

func NewArtifactStatusHandler(costs repository.TokenUsageRepository, logger *zerolog.Logger) *ArtifactStatusHandler {
	l := logger.With().Str("component", "ArtifactStatusHandler").Logger()
	return &ArtifactStatusHandler{costs: costs, log: &l}
}

func (h *ArtifactStatusHandler) Accepts(kind model.JobKind) bool {
	return kind.Family() == model.FamilyArtifact
}

func (h *ArtifactStatusHandler) Parse(body []byte) (StatusPayload, error) {
	var u artifactStatusUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *ArtifactStatusHandler) Apply(ctx context.Context, job model.PipelineJob, p StatusPayload) ([]model.ResultEvent, error) {
	u := p.(*artifactStatusUpdate)

	if len(u.Tokens) > 0 {
		now := time.Now()
		for i := range u.Tokens {
			u.Tokens[i].JobToken = job.Token
			u.Tokens[i].UserID = job.Owner.UserID
			u.Tokens[i].CourseID = job.Owner.CourseID
			u.Tokens[i].ExerciseID = job.Owner.ExerciseID
			u.Tokens[i].RecordedAt = now
			metrics.AddPipelineTokens(u.Tokens[i].Pipeline, u.Tokens[i].Model, u.Tokens[i].InputTokens, u.Tokens[i].OutputTokens)
		}
		if err := h.costs.SaveAll(ctx, nil, u.Tokens); err != nil {
			return nil, fmt.Errorf("record token costs: %w", err)
		}
	}

	events := []model.ResultEvent{{
		Kind:   model.EventStatus,
		Stages: u.Stages,
		Result: u.Result,
	}}
	return events, nil
}
