package model

import "encoding/json"

type EventKind string

const (
	// EventMessage signals that a chat message was created or updated.
	EventMessage EventKind = "MESSAGE"
	// EventStatus carries a stage snapshot and other non-message updates.
	EventStatus EventKind = "STATUS"
)

// ResultEvent is the transient payload pushed to a user's session topic for
// every callback that changed observable state. Lifecycle is create ->
// publish -> discard; the authoritative state is whatever was persisted.
type ResultEvent struct {
	SessionID        string          `json:"sessionId"`
	Kind             EventKind       `json:"kind"`
	Message          *ChatMessage    `json:"message,omitempty"`
	Stages           []Stage         `json:"stages,omitempty"`
	Suggestions      []string        `json:"suggestions,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	AccessedMemories []Memory        `json:"accessedMemories,omitempty"`
	CreatedMemories  []Memory        `json:"createdMemories,omitempty"`
	TokenUsages      []TokenUsage    `json:"tokenUsages,omitempty"`
}
