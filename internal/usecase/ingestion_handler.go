package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
)

// ingestionStatusUpdate is the callback payload of the ingestion family.
// For transcriptions, result carries the transcription document as a JSON
// string.
type ingestionStatusUpdate struct {
	Result        string        `json:"result,omitempty"`
	Stages        []model.Stage `json:"stages"`
	LectureUnitID int64         `json:"lectureUnitId,omitempty"`
	FaqID         int64         `json:"faqId,omitempty"`
}

func (u *ingestionStatusUpdate) StageList() []model.Stage { return u.Stages }

var _ StatusHandler = (*IngestionStatusHandler)(nil)

// IngestionStatusHandler tracks lecture/FAQ ingestion and transcription
// progress. Its side effects are status transitions on the target entity;
// a malformed terminal result marks the target FAILED instead of leaving it
// pending forever.
type IngestionStatusHandler struct {
	states repository.IngestionStateRepository
	log    *zerolog.Logger
}

func NewIngestionStatusHandler(states repository.IngestionStateRepository, logger *zerolog.Logger) *IngestionStatusHandler {
	l := logger.With().Str("component", "IngestionStatusHandler").Logger()
	return &IngestionStatusHandler{states: states, log: &l}
}

func (h *IngestionStatusHandler) Accepts(kind model.JobKind) bool {
	return kind.Family() == model.FamilyIngestion
}

func (h *IngestionStatusHandler) Parse(body []byte) (StatusPayload, error) {
	var u ingestionStatusUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *IngestionStatusHandler) Apply(ctx context.Context, job model.PipelineJob, p StatusPayload) ([]model.ResultEvent, error) {
	u := p.(*ingestionStatusUpdate)

	targetID := job.Owner.LectureUnitID
	if job.Kind == model.JobKindFaqIngestion {
		targetID = job.Owner.FaqID
	}

	state := &model.IngestionState{
		Kind:      job.Kind,
		CourseID:  job.Owner.CourseID,
		TargetID:  targetID,
		Status:    model.IngestionInProgress,
		UpdatedAt: time.Now(),
	}

	var applyErr error
	switch {
	case model.StagesFailed(u.Stages):
		state.Status = model.IngestionFailed
		state.Error = lastStageMessage(u.Stages)
	case model.StagesTerminal(u.Stages):
		state.Status = model.IngestionDone
		if job.Kind == model.JobKindTranscription {
			if err := h.saveTranscription(ctx, targetID, u.Result); err != nil {
				// The callback was terminal; the target must not stay
				// pending, so it fails instead.
				state.Status = model.IngestionFailed
				state.Error = err.Error()
				applyErr = err
			}
		}
	}

	if err := h.states.SetStatus(ctx, nil, state); err != nil {
		return nil, fmt.Errorf("update ingestion state: %w", err)
	}

	events := []model.ResultEvent{{
		Kind:   model.EventStatus,
		Stages: u.Stages,
	}}
	return events, applyErr
}

func (h *IngestionStatusHandler) saveTranscription(ctx context.Context, lectureUnitID int64, result string) error {
	if result == "" {
		return fmt.Errorf("terminal transcription callback without result")
	}
	var t model.Transcription
	if err := json.Unmarshal([]byte(result), &t); err != nil {
		return fmt.Errorf("parse transcription result: %w", err)
	}
	t.LectureUnitID = lectureUnitID
	if err := h.states.SaveTranscription(ctx, nil, &t); err != nil {
		return fmt.Errorf("save transcription: %w", err)
	}
	return nil
}

func lastStageMessage(stages []model.Stage) string {
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i].State == model.StageError {
			return stages[i].Message
		}
	}
	return ""
}
