package model

import "time"

// Submission is a read-only view of an exercise submission, used by the
// proactive event predicates. Scores are percentages in [0, 100].
type Submission struct {
	ID          int64
	ExerciseID  int64
	UserID      int64
	Score       float64
	Successful  bool
	SubmittedAt time.Time
}

// JudgementOfLearning is a student's self-assessment for a competency.
type JudgementOfLearning struct {
	CompetencyID int64
	UserID       int64
	Value        int
	RecordedAt   time.Time
}
