package adapter

import (
	"context"

	"lms-ai-backend/internal/domain/model"
)

// ExecutionRequest is the outbound invocation handed to the pipeline
// runtime. The token is the only credential the runtime needs to
// authenticate its subsequent callbacks.
type ExecutionRequest struct {
	Token         string
	Feature       string
	InitialStages []model.Stage
	Payload       any
}

// PipelineRunner starts a pipeline execution at the external runtime. Run
// returns as soon as the request was dispatched; all progress arrives later
// through status callbacks.
type PipelineRunner interface {
	Run(ctx context.Context, req ExecutionRequest) error
	// InitialStages returns the stage list a fresh execution of the feature
	// starts with, so the caller can publish a first status snapshot.
	InitialStages(feature string) []model.Stage
}
