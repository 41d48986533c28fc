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

// StatusPayload is the parsed body of one status callback. Every payload
// shape carries a full stage snapshot used for the termination decision.
type StatusPayload interface {
	StageList() []model.Stage
}

// StatusHandler is the per-kind strategy plugged into the dispatcher. The
// six-step callback algorithm lives in the dispatcher exactly once; handlers
// only differ in payload shape and side effects.
type StatusHandler interface {
	Accepts(kind model.JobKind) bool
	Parse(body []byte) (StatusPayload, error)
	// Apply performs the kind-specific side effects and returns the events
	// to publish, in order. Apply may stash auxiliary state on the job via
	// Registry.Mutate. It must not remove the job.
	Apply(ctx context.Context, job model.PipelineJob, p StatusPayload) ([]model.ResultEvent, error)
}

// StatusDispatcher authenticates and processes every status callback from
// the pipeline runtime, across all pipeline kinds.
type StatusDispatcher struct {
	registry  *jobs.Registry
	publisher adapter.EventPublisher
	handlers  map[model.JobFamily]StatusHandler
	log       *zerolog.Logger
}

func NewStatusDispatcher(registry *jobs.Registry, publisher adapter.EventPublisher, logger *zerolog.Logger) *StatusDispatcher {
	l := logger.With().Str("component", "StatusDispatcher").Logger()
	return &StatusDispatcher{
		registry:  registry,
		publisher: publisher,
		handlers:  make(map[model.JobFamily]StatusHandler),
		log:       &l,
	}
}

func (d *StatusDispatcher) Register(family model.JobFamily, h StatusHandler) {
	d.handlers[family] = h
}

// HandleStatus processes one callback. bearerToken is the credential from
// the Authorization header, pathRunID the run id from the URL. kind is the
// job kind the invoked endpoint serves; the empty kind accepts any kind of
// the family (the shared ingestion webhook).
//
// Errors are the domain sentinels; the web layer maps them to HTTP statuses.
func (d *StatusDispatcher) HandleStatus(ctx context.Context, family model.JobFamily, kind model.JobKind, pathRunID, bearerToken string, body []byte) error {
	job, ok := d.registry.Get(bearerToken)
	if !ok {
		metrics.IncCallback(string(family), "forbidden")
		return domain.ErrForbidden
	}

	// The authenticated token is the canonical run id; a diverging URL means
	// a fabricated path on a legitimately-signed body.
	if pathRunID != job.Token {
		metrics.IncCallback(string(family), "conflict")
		return domain.ErrRunIDMismatch
	}

	h := d.handlers[family]
	if h == nil || job.Kind.Family() != family || !h.Accepts(job.Kind) {
		metrics.IncCallback(string(family), "conflict")
		return domain.ErrWrongJobKind
	}
	// A token minted for one pipeline must not pass through a sibling
	// pipeline's endpoint, even within the same family.
	if kind != "" && job.Kind != kind {
		metrics.IncCallback(string(family), "conflict")
		return domain.ErrWrongJobKind
	}

	p, err := h.Parse(body)
	if err != nil {
		metrics.IncCallback(string(family), "malformed")
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	events, applyErr := h.Apply(ctx, job, p)

	// Even partial, non-terminal callbacks must reach the subscriber in
	// near-real-time, in the order this dispatcher processed them.
	topic := job.Owner.SessionID
	if topic == "" {
		topic = job.Token
	}
	for _, ev := range events {
		d.publisher.Publish(job.Owner.UserID, topic, ev)
	}

	terminal := model.StagesTerminal(p.StageList())
	if terminal {
		// Guaranteed eviction: a poisoned terminal payload must never leak a
		// permanently-registered job.
		d.registry.Remove(job.Token)
		metrics.IncJobFinished(string(job.Kind), model.StagesFailed(p.StageList()))
	}

	if applyErr != nil {
		// Side-effect failures are resolved here; the callback itself was
		// authentic and the protocol outcome (keep alive / evict) stands.
		d.log.Error().Err(applyErr).
			Str("kind", string(job.Kind)).
			Bool("terminal", terminal).
			Msg("status side effects failed")
		metrics.IncCallback(string(family), "side_effect_error")
		return nil
	}

	metrics.IncCallback(string(family), "ok")
	return nil
}
