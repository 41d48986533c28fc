package model

import "time"

type MessageSender string

const (
	SenderUser      MessageSender = "user"
	SenderAssistant MessageSender = "assistant"
)

// Memory is an auxiliary record the runtime accessed or created while
// answering. Memories are attached to messages, never stored standalone.
type Memory struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ChatMessage represents one message within a chat session.
type ChatMessage struct {
	ID               string
	SessionID        string
	Sender           MessageSender
	Content          string
	Helpful          *bool
	AccessedMemories []Memory
	CreatedMemories  []Memory
	SentAt           time.Time
}

// ChatSession is the aggregate root for a conversation driven by one of the
// chat pipeline kinds. The session outlives any number of pipeline jobs.
type ChatSession struct {
	ID         string
	UserID     int64
	CourseID   int64
	ExerciseID int64
	Kind       JobKind
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewChatSession(id string, userID int64, kind JobKind, courseID, exerciseID int64) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		ExerciseID: exerciseID,
		Kind:       kind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
