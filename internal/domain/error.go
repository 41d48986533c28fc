package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden covers unknown, expired or forged job tokens as well as a
	// user acting on a session they do not own. From the outside these are
	// indistinguishable, so they share one error.
	ErrForbidden = errors.New("forbidden")

	// ErrRunIDMismatch is returned when the run id in the callback URL does
	// not match the run id of the authenticated job.
	ErrRunIDMismatch = errors.New("run ID in URL does not match run ID in request body")

	// ErrWrongJobKind is returned when a valid token is presented to a
	// callback endpoint of a different pipeline family.
	ErrWrongJobKind = errors.New("run ID is not a job of this type")

	// ErrConflict marks a request that is internally consistent but refers
	// to the wrong entity, e.g. rating a message through a foreign session.
	ErrConflict = errors.New("conflict")

	// ErrRateLimited means the quota for the scope is exhausted. No job was
	// created and the pipeline runtime was never contacted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPipelineUnavailable means the outbound submission to the pipeline
	// runtime failed. The job has been rolled back from the registry.
	ErrPipelineUnavailable = errors.New("pipeline runtime unavailable")
)
