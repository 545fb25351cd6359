package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/certhub/internal/domain/job"
	"github.com/geocoder89/certhub/internal/jobs"
)

// ProcessOne claims and runs a single job. The bool reports whether a
// job was actually processed; (false, nil) means the queue was empty.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	w.metrics.IncClaimed()
	w.log.InfoContext(ctx, "worker.claimed",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", j.Attempts,
		"locked_by", w.cfg.WorkerID,
	)

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)

	w.metrics.ObserveDuration(elapsed)

	if w.prom != nil {
		w.prom.JobsInFlight.Dec()
	}

	if err != nil {
		w.observeResult(j, elapsed, w.handleFailure(ctx, j, err))
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.metrics.IncDone()
	w.observeResult(j, elapsed, "done")
	return true, nil
}

func (w *Worker) observeResult(j job.Job, elapsed time.Duration, result string) {
	if w.prom == nil || result == "" {
		return
	}

	w.prom.JobResults.WithLabelValues(j.Type, result).Inc()
	w.prom.JobDuration.WithLabelValues(j.Type, result).Observe(elapsed.Seconds())
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	h, ok := w.handlers[jobs.JobType(j.Type)]

	if !ok {
		return fmt.Errorf("no handler registered for job type %q", j.Type)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	return h(jobCtx, j)
}

// handleFailure routes a failed attempt to retry or the dead state and
// reports which for the metric label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	// attempts counts completed tries; Reschedule increments it
	nextAttempt := j.Attempts + 1

	if nextAttempt >= j.MaxAttempts {
		err := w.repo.MarkFailed(ctx, j.ID, cause.Error())

		if err != nil {
			w.log.ErrorContext(ctx, "worker.mark_failed_error", "job_id", j.ID, "err", err)
			return ""
		}

		w.metrics.IncFailed()
		w.log.ErrorContext(ctx, "worker.job_failed",
			"job_id", j.ID,
			"type", j.Type,
			"attempts", nextAttempt,
			"err", cause,
		)
		return "failed"
	}

	runAt := time.Now().Add(ExponentialBackoff(j.Attempts))

	err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error())

	if err != nil {
		w.log.ErrorContext(ctx, "worker.reschedule_error", "job_id", j.ID, "err", err)
		return ""
	}

	w.metrics.IncRetried()
	w.log.WarnContext(ctx, "worker.job_retry",
		"job_id", j.ID,
		"type", j.Type,
		"attempt", nextAttempt,
		"run_at", runAt,
		"err", cause,
	)
	return "retry"
}
