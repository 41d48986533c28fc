package model

import "time"

type JobKind string

const (
	JobKindExerciseChat         JobKind = "exercise_chat"
	JobKindCourseChat           JobKind = "course_chat"
	JobKindLectureChat          JobKind = "lecture_chat"
	JobKindTextExerciseChat     JobKind = "text_exercise_chat"
	JobKindTutorSuggestion      JobKind = "tutor_suggestion"
	JobKindCompetencyExtraction JobKind = "competency_extraction"
	JobKindConsistencyCheck     JobKind = "consistency_check"
	JobKindRephrasing           JobKind = "rephrasing"
	JobKindRewriting            JobKind = "rewriting"
	JobKindLectureIngestion     JobKind = "lecture_ingestion"
	JobKindFaqIngestion         JobKind = "faq_ingestion"
	JobKindTranscription        JobKind = "transcription_ingestion"
)

// JobFamily groups kinds that share a callback endpoint and payload shape.
type JobFamily string

const (
	FamilyChat      JobFamily = "chat"
	FamilyArtifact  JobFamily = "artifact"
	FamilyIngestion JobFamily = "ingestion"
)

func (k JobKind) Family() JobFamily {
	switch k {
	case JobKindExerciseChat, JobKindCourseChat, JobKindLectureChat, JobKindTextExerciseChat, JobKindTutorSuggestion:
		return FamilyChat
	case JobKindCompetencyExtraction, JobKindConsistencyCheck, JobKindRephrasing, JobKindRewriting:
		return FamilyArtifact
	case JobKindLectureIngestion, JobKindFaqIngestion, JobKindTranscription:
		return FamilyIngestion
	}
	return ""
}

var kindFeatures = map[JobKind]string{
	JobKindExerciseChat:         "programming-exercise-chat",
	JobKindCourseChat:           "course-chat",
	JobKindLectureChat:          "lecture-chat",
	JobKindTextExerciseChat:     "text-exercise-chat",
	JobKindTutorSuggestion:      "tutor-suggestion",
	JobKindCompetencyExtraction: "competency-extraction",
	JobKindConsistencyCheck:     "consistency-check",
	JobKindRephrasing:           "rephrasing",
	JobKindRewriting:            "rewriting",
	JobKindLectureIngestion:     "lecture-ingestion",
	JobKindFaqIngestion:         "faq-ingestion",
	JobKindTranscription:        "transcription",
}

// Feature is the URL path segment identifying the pipeline at the runtime
// and on the callback endpoints.
func (k JobKind) Feature() string { return kindFeatures[k] }

// KindByFeature resolves a callback path segment back to the job kind.
func KindByFeature(feature string) (JobKind, bool) {
	for k, f := range kindFeatures {
		if f == feature {
			return k, true
		}
	}
	return "", false
}

// OwnerIDs identifies the entities a job was started for. Zero values mean
// "not applicable" for the kind.
type OwnerIDs struct {
	UserID        int64
	CourseID      int64
	ExerciseID    int64
	SessionID     string
	LectureID     int64
	LectureUnitID int64
	FaqID         int64
}

// PipelineJob is the descriptor stored in the job registry under its token.
// Everything except AssistantMessageID is immutable after creation; the
// dispatcher writes AssistantMessageID through Registry.Mutate so a later
// partial callback can update the same assistant message.
type PipelineJob struct {
	Token     string
	Kind      JobKind
	Owner     OwnerIDs
	CreatedAt time.Time

	AssistantMessageID string
}
