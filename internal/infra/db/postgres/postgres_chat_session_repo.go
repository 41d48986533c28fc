package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-ai-backend/internal/domain"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/repository"
)

var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

type ChatSessionRepo struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepo(pool *pgxpool.Pool) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool}
}

func (r *ChatSessionRepo) SaveSession(ctx context.Context, tx repository.Tx, s *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (id, user_id, course_id, exercise_id, kind, title, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,COALESCE($7,NOW()),COALESCE($8,NOW()))
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  updated_at = EXCLUDED.updated_at;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, s.ID, s.UserID, s.CourseID, s.ExerciseID, string(s.Kind), s.Title, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) FindSession(ctx context.Context, tx repository.Tx, id string) (*model.ChatSession, error) {
	const q = `SELECT id, user_id, course_id, exercise_id, kind, title, created_at, updated_at
FROM chat_sessions WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var s model.ChatSession
	var kind string
	err = ex.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &s.CourseID, &s.ExerciseID, &kind, &s.Title, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.Kind = model.JobKind(kind)
	return &s, nil
}

func (r *ChatSessionRepo) UpdateTitle(ctx context.Context, tx repository.Tx, id, title string) error {
	const q = `UPDATE chat_sessions SET title=$2, updated_at=NOW() WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, id, title)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatSessionRepo) SaveMessage(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	accessed, created, err := marshalMemories(m)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO chat_messages (id, session_id, sender, content, helpful, accessed_memories, created_memories, sent_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,COALESCE($8,NOW()));`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q, m.ID, m.SessionID, string(m.Sender), m.Content, m.Helpful, accessed, created, m.SentAt)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *ChatSessionRepo) UpdateMessage(ctx context.Context, tx repository.Tx, m *model.ChatMessage) error {
	accessed, created, err := marshalMemories(m)
	if err != nil {
		return err
	}
	const q = `
UPDATE chat_messages
   SET content=$2, accessed_memories=$3, created_memories=$4
 WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, m.ID, m.Content, accessed, created)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatSessionRepo) FindMessage(ctx context.Context, tx repository.Tx, id string) (*model.ChatMessage, error) {
	const q = `SELECT id, session_id, sender, content, helpful, accessed_memories, created_memories, sent_at
FROM chat_messages WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	m, err := scanMessage(ex.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *ChatSessionRepo) ListMessages(ctx context.Context, tx repository.Tx, sessionID string) ([]model.ChatMessage, error) {
	// Message ids are ULIDs, so lexicographic id order is send order.
	const q = `SELECT id, session_id, sender, content, helpful, accessed_memories, created_memories, sent_at
FROM chat_messages WHERE session_id=$1 ORDER BY id ASC;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *ChatSessionRepo) SetHelpful(ctx context.Context, tx repository.Tx, messageID string, helpful *bool) error {
	const q = `UPDATE chat_messages SET helpful=$2 WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, messageID, helpful)
	if err != nil {
		return fmt.Errorf("set helpful: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func marshalMemories(m *model.ChatMessage) ([]byte, []byte, error) {
	accessed, err := json.Marshal(m.AccessedMemories)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal accessed memories: %w", err)
	}
	created, err := json.Marshal(m.CreatedMemories)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal created memories: %w", err)
	}
	return accessed, created, nil
}

func scanMessage(row pgx.Row) (*model.ChatMessage, error) {
	var m model.ChatMessage
	var sender string
	var accessed, created []byte
	if err := row.Scan(&m.ID, &m.SessionID, &sender, &m.Content, &m.Helpful, &accessed, &created, &m.SentAt); err != nil {
		return nil, err
	}
	m.Sender = model.MessageSender(sender)
	if len(accessed) > 0 {
		if err := json.Unmarshal(accessed, &m.AccessedMemories); err != nil {
			return nil, fmt.Errorf("unmarshal accessed memories: %w", err)
		}
	}
	if len(created) > 0 {
		if err := json.Unmarshal(created, &m.CreatedMemories); err != nil {
			return nil, fmt.Errorf("unmarshal created memories: %w", err)
		}
	}
	return &m, nil
}
