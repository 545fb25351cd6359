package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/geocoder89/certhub/internal/domain/job"
	"github.com/geocoder89/certhub/internal/jobs"
	"github.com/geocoder89/certhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// Handler executes one claimed job. A returned error triggers the retry
// path (reschedule with backoff, MarkFailed once attempts run out).
type Handler func(ctx context.Context, j job.Job) error

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
	JobTimeout    time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}

	if c.WorkerID == "" {
		host, _ := os.Hostname()
		c.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}

	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}

	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	handlers map[jobs.JobType]Handler
	log      *slog.Logger
	metrics  *observability.JobMetrics
	prom     *observability.Prom

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, log *slog.Logger, metrics *observability.JobMetrics) *Worker {
	cfg.applyDefaults()

	if log == nil {
		log = slog.Default()
	}

	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		handlers: make(map[jobs.JobType]Handler),
		log:      log,
		metrics:  metrics,
	}
}

// WithProm attaches the scrape-side metric vectors; the atomic set keeps
// working without it so tests stay dependency-free.
func (w *Worker) WithProm(p *observability.Prom) *Worker {
	w.prom = p
	return w
}

func (w *Worker) Register(t jobs.JobType, h Handler) {
	w.handlers[t] = h
}

func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run spins up Concurrency claim loops plus a janitor that frees stale
// locks, then blocks until ctx is cancelled and every loop drains.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()
			w.claimLoop(ctx, n)
		}(i)
	}

	wg.Add(1)

	go func() {
		defer wg.Done()
		w.janitorLoop(ctx)
	}()

	wg.Add(1)

	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	<-ctx.Done()
	w.setReady(false)

	done := make(chan struct{})

	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker drained")
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("worker shutdown grace exceeded, abandoning in-flight jobs")
	}

	return nil
}

func (w *Worker) claimLoop(ctx context.Context, n int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// drain the backlog before sleeping again

		for {
			processed, err := w.ProcessOne(ctx)

			if err != nil {
				w.log.ErrorContext(ctx, "worker.step_failed", "loop", n, "err", err)
				break
			}

			if !processed || ctx.Err() != nil {
				break
			}
		}
	}
}

func (w *Worker) janitorLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.LockTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			freed, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)

			if err != nil {
				w.log.ErrorContext(ctx, "worker.requeue_stale_failed", "err", err)
				continue
			}

			if freed > 0 {
				w.log.WarnContext(ctx, "worker.requeued_stale_jobs", "count", freed)
			}
		}
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := w.metrics.Snapshot()
			w.log.InfoContext(ctx, "worker.heartbeat",
				"worker_id", w.cfg.WorkerID,
				"claimed", s.Claimed,
				"done", s.Done,
				"failed", s.Failed,
				"retried", s.Retried,
				"issued", s.Issued,
				"issue_failures", s.IssueFailures,
				"avg_duration", s.AverageDuration.String(),
				"max_duration", s.MaxDuration.String(),
			)
		}
	}
}
