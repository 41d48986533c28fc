package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/infra/metrics"
	"lms-ai-backend/internal/jobs"
)

// SweepWorker periodically evicts expired jobs from the registry so tokens
// of runs that never call back cannot accumulate.
type SweepWorker struct {
	interval time.Duration
	registry *jobs.Registry
	log      *zerolog.Logger
}

func NewSweepWorker(interval time.Duration, registry *jobs.Registry, logger *zerolog.Logger) *SweepWorker {
	l := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		registry: registry,
		log:      &l,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			if n := w.registry.EvictExpired(); n > 0 {
				metrics.AddJobsEvicted(n)
			}
		}
	}
}
