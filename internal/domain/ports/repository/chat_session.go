package repository

import (
	"context"

	"lms-ai-backend/internal/domain/model"
)

// ChatSessionRepository persists sessions and their messages. Messages are
// the authoritative record of a conversation; fan-out events are ephemeral.
type ChatSessionRepository interface {
	SaveSession(ctx context.Context, tx Tx, s *model.ChatSession) error
	FindSession(ctx context.Context, tx Tx, id string) (*model.ChatSession, error)
	UpdateTitle(ctx context.Context, tx Tx, id, title string) error

	SaveMessage(ctx context.Context, tx Tx, m *model.ChatMessage) error
	// UpdateMessage overwrites content and memories of an existing message.
	UpdateMessage(ctx context.Context, tx Tx, m *model.ChatMessage) error
	FindMessage(ctx context.Context, tx Tx, id string) (*model.ChatMessage, error)
	ListMessages(ctx context.Context, tx Tx, sessionID string) ([]model.ChatMessage, error)
	SetHelpful(ctx context.Context, tx Tx, messageID string, helpful *bool) error
}
