package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages map[string]*model.ChatMessage
	order    []string
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
	if s, ok := m.sessions[id]; ok {
		s.Title = title
		return nil
	}
	return domain.ErrNotFound
}

func (m *memSessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, msg *model.ChatMessage) error {
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
	if msg, ok := m.messages[messageID]; ok {
		msg.Helpful = helpful
		return nil
	}
	return domain.ErrNotFound
}

// fakeTxManager runs the callback without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type memCostRepo struct{}

func (memCostRepo) SaveAll(ctx context.Context, tx repository.Tx, usages []model.TokenUsage) error {
	return nil
}
func (memCostRepo) SumForUser(ctx context.Context, tx repository.Tx, userID int64) (int64, int64, error) {
	return 0, 0, nil
}

type memStateRepo struct {
	mu     sync.Mutex
	states map[string]*model.IngestionState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: map[string]*model.IngestionState{}}
}

func stateKey(kind model.JobKind, targetID int64) string {
	return fmt.Sprintf("%s:%d", kind, targetID)
}

func (m *memStateRepo) SetStatus(ctx context.Context, tx repository.Tx, state *model.IngestionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[stateKey(state.Kind, state.TargetID)] = &cp
	return nil
}

func (m *memStateRepo) GetStatus(ctx context.Context, tx repository.Tx, kind model.JobKind, targetID int64) (*model.IngestionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[stateKey(kind, targetID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStateRepo) SaveTranscription(ctx context.Context, tx repository.Tx, t *model.Transcription) error {
	return nil
}

type fakeRunner struct {
	mu     sync.Mutex
	runs   int
	runErr error
}

func (f *fakeRunner) Run(ctx context.Context, req adapter.ExecutionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return f.runErr
	}
	f.runs++
	return nil
}

func (f *fakeRunner) InitialStages(feature string) []model.Stage {
	return []model.Stage{
		{Name: "Preparing", Weight: 10, State: model.StageInProgress},
		{Name: "Executing pipeline", Weight: 30, State: model.StageNotStarted},
	}
}

type fakeLimiter struct {
	denied bool
}

func (f *fakeLimiter) Allow(ctx context.Context, scopeKey string, policy model.RateLimitPolicy) (bool, error) {
	return !f.denied, nil
}
