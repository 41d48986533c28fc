package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/domain/ports/repository"
	"lms-ai-backend/internal/infra/worker"
)

var errTest = errors.New("boom")

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memSessionRepo is a small in-memory implementation used by unit tests.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages map[string]*model.ChatMessage
	order    []string // message ids in insertion order
	saveErr  error    // simulate message save failures
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions: map[string]*model.ChatSession{},
		messages: map[string]*model.ChatMessage{},
	}
}

func (m *memSessionRepo) SaveSession(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessionRepo) FindSession(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) UpdateTitle(ctx context.Context, tx repository.Tx, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Title = title
	return nil
}

func (m *memSessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.ChatMessage) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	m.order = append(m.order, msg.ID)
	return nil
}

func (m *memSessionRepo) UpdateMessage(ctx context.Context, tx repository.Tx, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memSessionRepo) FindMessage(ctx context.Context, tx repository.Tx, id string) (*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string) ([]model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChatMessage
	for _, id := range m.order {
		if msg := m.messages[id]; msg.SessionID == sessionID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memSessionRepo) SetHelpful(ctx context.Context, tx repository.Tx, messageID string, helpful *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok {
		return domain.ErrNotFound
	}
	msg.Helpful = helpful
	return nil
}

func (m *memSessionRepo) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// fakeTxManager runs the callback without a real transaction and counts
// invocations.
type fakeTxManager struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx, nil)
}

func (f *fakeTxManager) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memCostRepo struct {
	mu     sync.Mutex
	usages []model.TokenUsage
}

func (m *memCostRepo) SaveAll(ctx context.Context, tx repository.Tx, usages []model.TokenUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usages = append(m.usages, usages...)
	return nil
}

func (m *memCostRepo) SumForUser(ctx context.Context, tx repository.Tx, userID int64) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var in, out int64
	for _, u := range m.usages {
		if u.UserID == userID {
			in += int64(u.InputTokens)
			out += int64(u.OutputTokens)
		}
	}
	return in, out, nil
}

type memStateRepo struct {
	mu             sync.Mutex
	states         map[int64]*model.IngestionState
	transcriptions map[int64]*model.Transcription
	saveTransErr   error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{
		states:         map[int64]*model.IngestionState{},
		transcriptions: map[int64]*model.Transcription{},
	}
}

func (m *memStateRepo) SetStatus(ctx context.Context, tx repository.Tx, state *model.IngestionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.TargetID] = &cp
	return nil
}

func (m *memStateRepo) GetStatus(ctx context.Context, tx repository.Tx, kind model.JobKind, targetID int64) (*model.IngestionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[targetID]
	if !ok || s.Kind != kind {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStateRepo) SaveTranscription(ctx context.Context, tx repository.Tx, t *model.Transcription) error {
	if m.saveTransErr != nil {
		return m.saveTransErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.transcriptions[t.LectureUnitID] = &cp
	return nil
}

type memSubmissionRepo struct {
	subs []model.Submission // newest first
}

func (m *memSubmissionRepo) Latest(ctx context.Context, tx repository.Tx, exerciseID, userID int64, n int) ([]model.Submission, error) {
	if n > len(m.subs) {
		n = len(m.subs)
	}
	out := make([]model.Submission, n)
	copy(out, m.subs[:n])
	return out, nil
}

// fakeRunner records submissions and optionally fails them.
type fakeRunner struct {
	mu     sync.Mutex
	runs   []adapter.ExecutionRequest
	runErr error
}

func (f *fakeRunner) Run(ctx context.Context, req adapter.ExecutionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return f.runErr
	}
	f.runs = append(f.runs, req)
	return nil
}

func (f *fakeRunner) InitialStages(feature string) []model.Stage {
	return []model.Stage{
		{Name: "Preparing", Weight: 10, State: model.StageInProgress},
		{Name: "Executing pipeline", Weight: 30, State: model.StageNotStarted},
	}
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type publishedEvent struct {
	UserID int64
	Topic  string
	Event  model.ResultEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(userID int64, topic string, event model.ResultEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{UserID: userID, Topic: topic, Event: event})
}

func (f *fakePublisher) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.events))
	copy(out, f.events)
	return out
}

// fakeLimiter admits everything until denied is set.
type fakeLimiter struct {
	denied bool
	calls  int
}

func (f *fakeLimiter) Allow(ctx context.Context, scopeKey string, policy model.RateLimitPolicy) (bool, error) {
	f.calls++
	return !f.denied, nil
}

// syncPool runs tasks inline so tests stay deterministic.
type syncPool struct{}

func (syncPool) Submit(task worker.Task) error {
	return task(context.Background())
}
