package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/domain/ports/repository"
	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/infra/worker"
	"lms-ai-backend/internal/jobs"
)

// Proactive event names carried in the pipeline payload.
const (
	eventProgressStalled     = "progress_stalled"
	eventBuildFailed         = "build_failed"
	eventJudgementOfLearning = "jol"
)

// stalledWindow is the number of most recent submissions inspected by the
// stalled-progress predicate. Fewer submissions suppress the event.
const stalledWindow = 3

// StalledProgress reports whether the newest-first submission history shows
// no improvement. With fewer than three submissions there is not enough
// signal, and a full score is progress by definition.
func StalledProgress(subs []model.Submission) bool {
	if len(subs) < stalledWindow {
		return false
	}
	if subs[0].Score >= 100 {
		return false
	}
	for i := 0; i < stalledWindow-1; i++ {
		if subs[i].Score > subs[i+1].Score {
			return false
		}
	}
	return true
}

// BuildFailure reports whether the latest submission exists and failed to
// build.
func BuildFailure(subs []model.Submission) bool {
	return len(subs) > 0 && !subs[0].Successful
}

// ProactiveUseCase turns submission results and judgement-of-learning
// records into unsolicited pipeline runs on the student's chat session.
// Evaluation runs on the worker pool so the calling request never blocks on
// history lookups or the pipeline runtime.
type ProactiveUseCase struct {
	submissions repository.SubmissionRepository
	registry    *jobs.Registry
	runner      adapter.PipelineRunner
	publisher   adapter.EventPublisher
	pool        TaskPool
	disabled    map[int64]bool
	log         *zerolog.Logger
}

// TaskPool is the subset of the worker pool the proactive evaluator needs.
type TaskPool interface {
	Submit(task worker.Task) error
}

func NewProactiveUseCase(
	submissions repository.SubmissionRepository,
	registry *jobs.Registry,
	runner adapter.PipelineRunner,
	publisher adapter.EventPublisher,
	pool TaskPool,
	disabledCourses []int64,
	logger *zerolog.Logger,
) *ProactiveUseCase {
	disabled := make(map[int64]bool, len(disabledCourses))
	for _, id := range disabledCourses {
		disabled[id] = true
	}
	l := logger.With().Str("component", "ProactiveUC").Logger()
	return &ProactiveUseCase{
		submissions: submissions,
		registry:    registry,
		runner:      runner,
		publisher:   publisher,
		pool:        pool,
		disabled:    disabled,
		log:         &l,
	}
}

// NotifySubmission schedules predicate evaluation for a fresh submission
// result. At most one event fires per submission; build failure wins over
// stalled progress.
func (p *ProactiveUseCase) NotifySubmission(userID, courseID, exerciseID int64, sessionID string) error {
	if p.disabled[courseID] {
		return nil
	}
	return p.pool.Submit(func(ctx context.Context) error {
		subs, err := p.submissions.Latest(ctx, nil, exerciseID, userID, stalledWindow)
		if err != nil {
			return fmt.Errorf("load submission history: %w", err)
		}

		switch {
		case BuildFailure(subs):
			return p.fire(ctx, eventBuildFailed, userID, courseID, exerciseID, sessionID)
		case StalledProgress(subs):
			return p.fire(ctx, eventProgressStalled, userID, courseID, exerciseID, sessionID)
		}
		return nil
	})
}

// NotifyJudgementOfLearning schedules a course-chat run for a freshly
// recorded self-assessment.
func (p *ProactiveUseCase) NotifyJudgementOfLearning(userID, courseID int64, sessionID string, jol model.JudgementOfLearning) error {
	if p.disabled[courseID] {
		return nil
	}
	return p.pool.Submit(func(ctx context.Context) error {
		job := p.registry.Create(model.JobKindCourseChat, model.OwnerIDs{
			UserID:    userID,
			CourseID:  courseID,
			SessionID: sessionID,
		})
		err := p.runner.Run(ctx, adapter.ExecutionRequest{
			Token:         job.Token,
			Feature:       model.JobKindCourseChat.Feature(),
			InitialStages: p.runner.InitialStages(model.JobKindCourseChat.Feature()),
			Payload: map[string]any{
				"event":     eventJudgementOfLearning,
				"sessionId": sessionID,
				"jol":       jol,
			},
		})
		if err != nil {
			p.registry.Remove(job.Token)
			return fmt.Errorf("submit %s run: %w", eventJudgementOfLearning, err)
		}
		metrics.IncJobStarted(string(model.JobKindCourseChat))
		return nil
	})
}

func (p *ProactiveUseCase) fire(ctx context.Context, event string, userID, courseID, exerciseID int64, sessionID string) error {
	job := p.registry.Create(model.JobKindExerciseChat, model.OwnerIDs{
		UserID:     userID,
		CourseID:   courseID,
		ExerciseID: exerciseID,
		SessionID:  sessionID,
	})

	stages := p.runner.InitialStages(model.JobKindExerciseChat.Feature())
	p.publisher.Publish(userID, sessionID, model.ResultEvent{
		SessionID: sessionID,
		Kind:      model.EventStatus,
		Stages:    stages,
	})

	err := p.runner.Run(ctx, adapter.ExecutionRequest{
		Token:         job.Token,
		Feature:       model.JobKindExerciseChat.Feature(),
		InitialStages: stages,
		Payload: map[string]any{
			"event":     event,
			"sessionId": sessionID,
		},
	})
	if err != nil {
		p.registry.Remove(job.Token)
		return fmt.Errorf("submit %s run: %w", event, err)
	}

	p.log.Info().Str("event", event).Int64("exercise_id", exerciseID).Msg("proactive run submitted")
	metrics.IncJobStarted(string(model.JobKindExerciseChat))
	return nil
}
