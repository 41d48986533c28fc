package model

import "time"

// TokenUsage is one LLM cost entry reported by the runtime in a status
// callback, keyed by (job, message, owning entity, user, course).
type TokenUsage struct {
	JobToken     string    `json:"-"`
	MessageID    string    `json:"-"`
	UserID       int64     `json:"-"`
	CourseID     int64     `json:"-"`
	ExerciseID   int64     `json:"-"`
	Model        string    `json:"model"`
	Pipeline     string    `json:"pipeline"`
	InputTokens  int       `json:"numInputTokens"`
	OutputTokens int       `json:"numOutputTokens"`
	RecordedAt   time.Time `json:"-"`
}
