package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/domain/ports/repository"
	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/jobs"
)

// RateLimiter is the quota check consulted before any job creation. The
// redis implementation satisfies it; tests use in-memory fakes.
type RateLimiter interface {
	Allow(ctx context.Context, scopeKey string, policy model.RateLimitPolicy) (bool, error)
}

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	StartSession(ctx context.Context, userID int64, kind model.JobKind, courseID, exerciseID int64) (*model.ChatSession, error)
	// SendMessage persists the user message, echoes it to the session topic
	// and submits a pipeline job. Returns the persisted user message.
	SendMessage(ctx context.Context, userID int64, sessionID, content string) (*model.ChatMessage, error)
	// ResendMessage re-submits the pipeline for an already persisted user
	// message, e.g. after a failed run. No new message is created.
	ResendMessage(ctx context.Context, userID int64, sessionID, messageID string) error
	ListMessages(ctx context.Context, userID int64, sessionID string) ([]model.ChatMessage, error)
	RateMessage(ctx context.Context, userID int64, sessionID, messageID string, helpful *bool) error
}

type chatUC struct {
	sessions  repository.ChatSessionRepository
	registry  *jobs.Registry
	runner    adapter.PipelineRunner
	limiter   RateLimiter
	publisher adapter.EventPublisher
	limits    map[model.JobFamily]model.RateLimitPolicy
	log       *zerolog.Logger
}

func NewChatUseCase(
	sessions repository.ChatSessionRepository,
	registry *jobs.Registry,
	runner adapter.PipelineRunner,
	limiter RateLimiter,
	publisher adapter.EventPublisher,
	limits map[model.JobFamily]model.RateLimitPolicy,
	logger *zerolog.Logger,
) *chatUC {
	l := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{
		sessions:  sessions,
		registry:  registry,
		runner:    runner,
		limiter:   limiter,
		publisher: publisher,
		limits:    limits,
		log:       &l,
	}
}

func (c *chatUC) StartSession(ctx context.Context, userID int64, kind model.JobKind, courseID, exerciseID int64) (*model.ChatSession, error) {
	if kind.Family() != model.FamilyChat {
		return nil, domain.ErrInvalidArgument
	}
	s := model.NewChatSession(uuid.NewString(), userID, kind, courseID, exerciseID)
	if err := c.sessions.SaveSession(ctx, nil, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (c *chatUC) SendMessage(ctx context.Context, userID int64, sessionID, content string) (*model.ChatMessage, error) {
	s, err := c.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrInvalidArgument
	}

	if err := c.checkRateLimit(ctx, s); err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		Sender:    model.SenderUser,
		Content:   content,
		SentAt:    time.Now(),
	}
	if err := c.sessions.SaveMessage(ctx, nil, msg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	// Echo the user message before any pipeline progress becomes visible.
	c.publisher.Publish(s.UserID, s.ID, model.ResultEvent{
		SessionID: s.ID,
		Kind:      model.EventMessage,
		Message:   msg,
	})

	if err := c.submit(ctx, s, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *chatUC) ResendMessage(ctx context.Context, userID int64, sessionID, messageID string) error {
	s, err := c.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	msg, err := c.sessions.FindMessage(ctx, nil, messageID)
	if err != nil {
		return err
	}
	if msg.SessionID != s.ID {
		return domain.ErrConflict
	}
	if msg.Sender != model.SenderUser {
		return domain.ErrInvalidArgument
	}

	if err := c.checkRateLimit(ctx, s); err != nil {
		return err
	}
	return c.submit(ctx, s, msg)
}

func (c *chatUC) ListMessages(ctx context.Context, userID int64, sessionID string) ([]model.ChatMessage, error) {
	s, err := c.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return c.sessions.ListMessages(ctx, nil, s.ID)
}

func (c *chatUC) RateMessage(ctx context.Context, userID int64, sessionID, messageID string, helpful *bool) error {
	s, err := c.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	msg, err := c.sessions.FindMessage(ctx, nil, messageID)
	if err != nil {
		return err
	}
	if msg.SessionID != s.ID {
		return domain.ErrConflict
	}
	if msg.Sender != model.SenderAssistant {
		return domain.ErrInvalidArgument
	}
	return c.sessions.SetHelpful(ctx, nil, messageID, helpful)
}

func (c *chatUC) ownedSession(ctx context.Context, userID int64, sessionID string) (*model.ChatSession, error) {
	s, err := c.sessions.FindSession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return s, nil
}

func (c *chatUC) checkRateLimit(ctx context.Context, s *model.ChatSession) error {
	policy := c.limits[model.FamilyChat]
	key := model.ScopeKeyUserFamily(s.UserID, model.FamilyChat)
	if s.Kind == model.JobKindCourseChat {
		key = model.ScopeKeyUserCourse(s.UserID, s.CourseID)
	}

	allowed, err := c.limiter.Allow(ctx, key, policy)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		metrics.IncRateLimitDenied(string(s.Kind))
		return domain.ErrRateLimited
	}
	return nil
}

// submit registers the job, publishes the initial stage snapshot and
// dispatches the execution request. A synchronous send failure rolls the
// job back so no orphaned registry entry survives.
func (c *chatUC) submit(ctx context.Context, s *model.ChatSession, msg *model.ChatMessage) error {
	job := c.registry.Create(s.Kind, model.OwnerIDs{
		UserID:     s.UserID,
		CourseID:   s.CourseID,
		ExerciseID: s.ExerciseID,
		SessionID:  s.ID,
	})

	stages := c.runner.InitialStages(s.Kind.Feature())
	c.publisher.Publish(s.UserID, s.ID, model.ResultEvent{
		SessionID: s.ID,
		Kind:      model.EventStatus,
		Stages:    stages,
	})

	err := c.runner.Run(ctx, adapter.ExecutionRequest{
		Token:         job.Token,
		Feature:       s.Kind.Feature(),
		InitialStages: stages,
		Payload: map[string]any{
			"sessionId": s.ID,
			"question":  msg.Content,
		},
	})
	if err != nil {
		c.registry.Remove(job.Token)
		c.log.Error().Err(err).Str("kind", string(s.Kind)).Msg("pipeline submission failed")
		return fmt.Errorf("%w: %v", domain.ErrPipelineUnavailable, err)
	}

	metrics.IncJobStarted(string(s.Kind))
	return nil
}
