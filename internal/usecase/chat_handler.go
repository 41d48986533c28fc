package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/jobs"
)

// chatStatusUpdate is the callback payload shared by all chat pipeline
// kinds. Every field except stages is optional; the runtime sends whatever
// it has produced so far.
type chatStatusUpdate struct {
	Result           string             `json:"result,omitempty"`
	Stages           []model.Stage      `json:"stages"`
	SessionTitle     string             `json:"sessionTitle,omitempty"`
	Suggestions      []string           `json:"suggestions,omitempty"`
	Tokens           []model.TokenUsage `json:"tokens,omitempty"`
	AccessedMemories []model.Memory     `json:"accessedMemories,omitempty"`
	CreatedMemories  []model.Memory     `json:"createdMemories,omitempty"`
}

func (u *chatStatusUpdate) StageList() []model.Stage { return u.Stages }

var _ StatusHandler = (*ChatStatusHandler)(nil)

// ChatStatusHandler applies chat callbacks: assistant messages, session
// titles, memories and token costs. All writes of one callback run in a
// single transaction; a failed cost save must not leave an assistant message
// without its usage record.
type ChatStatusHandler struct {
	sessions repository.ChatSessionRepository
	costs    repository.TokenUsageRepository
	txm      repository.TransactionManager
	registry *jobs.Registry
	log      *zerolog.Logger
}

func NewChatStatusHandler(sessions repository.ChatSessionRepository, costs repository.TokenUsageRepository, txm repository.TransactionManager, registry *jobs.Registry, logger *zerolog.Logger) *ChatStatusHandler {
	l := logger.With().Str("component", "ChatStatusHandler").Logger()
	return &ChatStatusHandler{sessions: sessions, costs: costs, txm: txm, registry: registry, log: &l}
}

func (h *ChatStatusHandler) Accepts(kind model.JobKind) bool {
	return kind.Family() == model.FamilyChat
}

func (h *ChatStatusHandler) Parse(body []byte) (StatusPayload, error) {
	var u chatStatusUpdate
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (h *ChatStatusHandler) Apply(ctx context.Context, job model.PipelineJob, p StatusPayload) ([]model.ResultEvent, error) {
	u := p.(*chatStatusUpdate)
	sessionID := job.Owner.SessionID

	events := []model.ResultEvent{{
		SessionID:        sessionID,
		Kind:             model.EventStatus,
		Stages:           u.Stages,
		Suggestions:      u.Suggestions,
		AccessedMemories: u.AccessedMemories,
		CreatedMemories:  u.CreatedMemories,
	}}

	var msg *model.ChatMessage
	prevMsgID := job.AssistantMessageID
	err := h.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if u.SessionTitle != "" {
			if err := h.sessions.UpdateTitle(ctx, tx, sessionID, u.SessionTitle); err != nil {
				return fmt.Errorf("update session title: %w", err)
			}
		}

		if u.Result != "" {
			var err error
			msg, err = h.upsertAssistantMessage(ctx, tx, &job, u.Result)
			if err != nil {
				return err
			}
		}

		if len(u.AccessedMemories) > 0 || len(u.CreatedMemories) > 0 {
			if err := h.attachMemories(ctx, tx, job, msg, u.AccessedMemories, u.CreatedMemories); err != nil {
				return err
			}
		}

		if len(u.Tokens) > 0 {
			if err := h.recordCosts(ctx, tx, job, u.Tokens); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return events, err
	}

	if msg != nil {
		// Stash the id only after commit; a rolled-back message must not be
		// merged into by later callbacks.
		if prevMsgID == "" {
			h.registry.Mutate(job.Token, func(j *model.PipelineJob) {
				j.AssistantMessageID = msg.ID
			})
		}
		events = append(events, model.ResultEvent{
			SessionID: sessionID,
			Kind:      model.EventMessage,
			Message:   msg,
		})
	}

	return events, nil
}

// upsertAssistantMessage creates the assistant message on the first result
// for this job and merges later partial results into it. The created id is
// stashed on the job under per-token exclusivity, so a duplicate terminal
// callback can never create a second message.
func (h *ChatStatusHandler) upsertAssistantMessage(ctx context.Context, tx repository.Tx, job *model.PipelineJob, result string) (*model.ChatMessage, error) {
	if job.AssistantMessageID != "" {
		msg, err := h.sessions.FindMessage(ctx, tx, job.AssistantMessageID)
		if err != nil {
			return nil, fmt.Errorf("load assistant message: %w", err)
		}
		msg.Content = result
		if err := h.sessions.UpdateMessage(ctx, tx, msg); err != nil {
			return nil, fmt.Errorf("merge assistant message: %w", err)
		}
		return msg, nil
	}

	msg := &model.ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: job.Owner.SessionID,
		Sender:    model.SenderAssistant,
		Content:   result,
		SentAt:    time.Now(),
	}
	if err := h.sessions.SaveMessage(ctx, tx, msg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	job.AssistantMessageID = msg.ID
	return msg, nil
}

// attachMemories attaches memory records to the most recently touched
// message of the job: the assistant message when one exists, otherwise the
// latest message of the session (the triggering user message).
func (h *ChatStatusHandler) attachMemories(ctx context.Context, tx repository.Tx, job model.PipelineJob, msg *model.ChatMessage, accessed, created []model.Memory) error {
	if msg == nil && job.AssistantMessageID != "" {
		var err error
		msg, err = h.sessions.FindMessage(ctx, tx, job.AssistantMessageID)
		if err != nil {
			return fmt.Errorf("load assistant message for memories: %w", err)
		}
	}
	if msg == nil {
		msgs, err := h.sessions.ListMessages(ctx, tx, job.Owner.SessionID)
		if err != nil {
			return fmt.Errorf("list messages for memories: %w", err)
		}
		if len(msgs) == 0 {
			return domain.ErrNotFound
		}
		msg = &msgs[len(msgs)-1]
	}

	msg.AccessedMemories = append(msg.AccessedMemories, accessed...)
	msg.CreatedMemories = append(msg.CreatedMemories, created...)
	if err := h.sessions.UpdateMessage(ctx, tx, msg); err != nil {
		return fmt.Errorf("attach memories: %w", err)
	}
	return nil
}

func (h *ChatStatusHandler) recordCosts(ctx context.Context, tx repository.Tx, job model.PipelineJob, usages []model.TokenUsage) error {
	now := time.Now()
	for i := range usages {
		usages[i].JobToken = job.Token
		usages[i].MessageID = job.AssistantMessageID
		usages[i].UserID = job.Owner.UserID
		usages[i].CourseID = job.Owner.CourseID
		usages[i].ExerciseID = job.Owner.ExerciseID
		usages[i].RecordedAt = now
		metrics.AddPipelineTokens(usages[i].Pipeline, usages[i].Model, usages[i].InputTokens, usages[i].OutputTokens)
	}
	if err := h.costs.SaveAll(ctx, tx, usages); err != nil {
		return fmt.Errorf("record token costs: %w", err)
	}
	return nil
}
