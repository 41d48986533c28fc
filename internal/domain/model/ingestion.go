package model

import "time"

// IngestionStatus tracks the externally-visible state of an ingestion or
// transcription target. FAILED is distinct from PENDING so a malformed
// terminal callback never leaves a target pending forever.
type IngestionStatus string

const (
	IngestionPending    IngestionStatus = "PENDING"
	IngestionInProgress IngestionStatus = "IN_PROGRESS"
	IngestionDone       IngestionStatus = "DONE"
	IngestionFailed     IngestionStatus = "FAILED"
)

// IngestionState is the persisted status of one lecture unit, FAQ or
// transcription being ingested into the runtime's knowledge base.
type IngestionState struct {
	Kind      JobKind
	CourseID  int64
	TargetID  int64 // lecture unit id or FAQ id
	Status    IngestionStatus
	Error     string
	UpdatedAt time.Time
}

// Transcription is the parsed result of a terminal transcription callback.
type Transcription struct {
	LectureUnitID int64                  `json:"-"`
	Language      string                 `json:"language"`
	Segments      []TranscriptionSegment `json:"segments"`
}

type TranscriptionSegment struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
	SlideNum  int     `json:"slideNumber,omitempty"`
}
