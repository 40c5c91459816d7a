package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one recompute chain run by a RecomputeWorker.
type Job func(ctx context.Context) error

// RecomputeWorker runs a job on a fixed interval.
type RecomputeWorker struct {
	name     string
	job      Job
	interval time.Duration
}

// NewRecomputeWorker constructs a RecomputeWorker.
func NewRecomputeWorker(name string, job Job, interval time.Duration) *RecomputeWorker {
	return &RecomputeWorker{name: name, job: job, interval: interval}
}

// Start runs the job on every tick until ctx is cancelled. A failed run is
// logged and the worker waits for the next tick. A non-positive interval
// disables the worker.
func (w *RecomputeWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		log.Warn().Str("job", w.name).Msg("Recompute worker disabled")
		return
	}
	log.Info().Str("job", w.name).Dur("interval", w.interval).Msg("Starting recompute worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Str("job", w.name).Msg("Recompute worker stopped")
			return
		}
	}
}

func (w *RecomputeWorker) run(ctx context.Context) {
	start := time.Now()
	if err := w.job(ctx); err != nil {
		log.Error().Err(err).Str("job", w.name).Msg("Recompute job failed")
		return
	}
	log.Info().Str("job", w.name).Dur("duration", time.Since(start)).Msg("Recompute job completed")
}

// RunOnce runs jobs in order, once, logging failures. It is used at startup.
func RunOnce(ctx context.Context, jobs ...NamedJob) {
	for _, j := range jobs {
		NewRecomputeWorker(j.Name, j.Job, 0).run(ctx)
	}
}

// NamedJob pairs a job with its log name.
type NamedJob struct {
	Name string
	Job  Job
}
