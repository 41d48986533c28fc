package model

// StageState is the lifecycle state of a single pipeline stage as reported
// by the runtime. DONE and ERROR are terminal for that stage.
type StageState string

const (
	StageNotStarted StageState = "NOT_STARTED"
	StageInProgress StageState = "IN_PROGRESS"
	StageDone       StageState = "DONE"
	StageError      StageState = "ERROR"
)

func (s StageState) Terminal() bool {
	return s == StageDone || s == StageError
}

// Stage is one named phase of a pipeline execution. A status callback
// carries the full ordered list of stages as a snapshot, not a delta.
type Stage struct {
	Name    string     `json:"name"`
	Weight  int        `json:"weight"`
	State   StageState `json:"state"`
	Message string     `json:"message,omitempty"`
}

// StagesTerminal reports whether a stage snapshot ends the job: every stage
// must be DONE or ERROR. A job with a non-terminal snapshot stays registered.
func StagesTerminal(stages []Stage) bool {
	for _, s := range stages {
		if !s.State.Terminal() {
			return false
		}
	}
	return true
}

// StagesFailed reports whether any stage ended in ERROR.
func StagesFailed(stages []Stage) bool {
	for _, s := range stages {
		if s.State == StageError {
			return true
		}
	}
	return false
}
