package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain/model"
)

// Config holds the TTL budget per job kind. Jobs whose runtime never calls
// back (crash, dropped run) are evicted after their TTL so the registry
// cannot grow without bound.
type Config struct {
	DefaultTTL time.Duration
	KindTTL    map[model.JobKind]time.Duration
}

// Registry is the concurrent token -> job store shared by the request and
// callback populations. It is the sole owner of job descriptors: nothing
// else ever frees a token.
type Registry struct {
	cfg Config
	log *zerolog.Logger
	now func() time.Time

	mu   sync.RWMutex
	jobs map[string]*entry
}

type entry struct {
	// mu serializes Mutate calls for this token. Two callbacks for the same
	// job must not race when stashing the assistant message id.
	mu        sync.Mutex
	job       model.PipelineJob
	expiresAt time.Time
}

func New(cfg Config, logger *zerolog.Logger) *Registry {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 4 * time.Hour
	}
	l := logger.With().Str("component", "JobRegistry").Logger()
	return &Registry{
		cfg:  cfg,
		log:  &l,
		now:  time.Now,
		jobs: make(map[string]*entry),
	}
}

func (r *Registry) ttl(kind model.JobKind) time.Duration {
	if d, ok := r.cfg.KindTTL[kind]; ok && d > 0 {
		return d
	}
	return r.cfg.DefaultTTL
}

// Create allocates a fresh unguessable token, stores the descriptor and
// returns a copy of it. Tokens are never reused.
func (r *Registry) Create(kind model.JobKind, owner model.OwnerIDs) model.PipelineJob {
	now := r.now()
	job := model.PipelineJob{
		Token:     uuid.NewString(),
		Kind:      kind,
		Owner:     owner,
		CreatedAt: now,
	}

	r.mu.Lock()
	r.jobs[job.Token] = &entry{job: job, expiresAt: now.Add(r.ttl(kind))}
	r.mu.Unlock()

	r.log.Debug().Str("kind", string(kind)).Str("token", job.Token).Msg("job registered")
	return job
}

// Get returns a copy of the job for the token. An unknown or expired token
// reads as absent; callers treat that as forbidden, since a forged token is
// indistinguishable from an expired one.
func (r *Registry) Get(token string) (model.PipelineJob, bool) {
	r.mu.RLock()
	e, ok := r.jobs[token]
	r.mu.RUnlock()
	if !ok {
		return model.PipelineJob{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r.now().After(e.expiresAt) {
		return model.PipelineJob{}, false
	}
	return e.job, true
}

// Mutate applies fn to the stored descriptor under per-token exclusivity.
// It reports whether the token was still registered. fn must only touch the
// auxiliary fields, never token or kind.
func (r *Registry) Mutate(token string, fn func(job *model.PipelineJob)) bool {
	r.mu.RLock()
	e, ok := r.jobs[token]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	return true
}

// Remove evicts the token. It is idempotent: duplicate terminal callbacks
// are expected from an unreliable network, so removing an absent token is a
// no-op rather than an error.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	_, ok := r.jobs[token]
	delete(r.jobs, token)
	r.mu.Unlock()

	if ok {
		r.log.Debug().Str("token", token).Msg("job removed")
	}
}

// EvictExpired removes every job past its TTL and returns how many were
// dropped. Runs independently of callback activity.
func (r *Registry) EvictExpired() int {
	now := r.now()

	r.mu.Lock()
	var evicted int
	for token, e := range r.jobs {
		if now.After(e.expiresAt) {
			delete(r.jobs, token)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.log.Info().Int("count", evicted).Msg("expired jobs evicted")
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
