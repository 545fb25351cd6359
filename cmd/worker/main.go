package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geocoder89/certhub/internal/cache"
	"github.com/geocoder89/certhub/internal/config"
	"github.com/geocoder89/certhub/internal/db"
	"github.com/geocoder89/certhub/internal/domain/job"
	"github.com/geocoder89/certhub/internal/issue"
	"github.com/geocoder89/certhub/internal/jobs"
	"github.com/geocoder89/certhub/internal/notifications"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/geocoder89/certhub/internal/progress"
	"github.com/geocoder89/certhub/internal/queue/redisclient"
	"github.com/geocoder89/certhub/internal/queue/worker"
	"github.com/geocoder89/certhub/internal/render"
	"github.com/geocoder89/certhub/internal/repo/postgres"
	"github.com/geocoder89/certhub/internal/storage"
	"github.com/geocoder89/certhub/internal/templates"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "certhub-worker", cfg.OTLPEndpoint)

	if err != nil {
		log.Warn("tracing disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	if err := db.Bootstrap(ctx, pool); err != nil {
		log.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	redisC := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer redisC.Close()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	jobMetrics := observability.NewJobMetrics()

	root := storage.NewRoot(cfg.UploadPath)

	templatesRepo := postgres.NewTemplatesRepo(pool, prom)
	certsRepo := postgres.NewCertificatesRepo(pool, prom)
	participantsRepo := postgres.NewParticipantsRepo(pool, prom)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	store := templates.New(templatesRepo, root, cache.New(30*time.Second), log)

	surface := render.NewChromeSurface(cfg.RenderTimeout).WithExecPath(cfg.ChromePath)
	engine := render.NewEngine(root, surface, log, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)

	issuer := issue.NewService(participantsRepo, store, certsRepo, engine, notifier, log, prom)
	tracker := progress.NewTracker(redisC.Raw(), 0, log)
	bulk := issue.NewBulk(issuer, tracker, log, jobMetrics)

	w := worker.New(worker.Config{
		PollInterval:  cfg.WorkerPollInterval,
		Concurrency:   cfg.WorkerConcurrency,
		ShutdownGrace: cfg.WorkerShutdownGrace,
		LockTTL:       cfg.WorkerLockTTL,
		JobTimeout:    cfg.WorkerJobTimeout,
	}, jobsRepo, log, jobMetrics).WithProm(prom)

	w.Register(jobs.JobBulkGenerateCertificates, func(ctx context.Context, j job.Job) error {
		decoded, err := jobs.DecodePayload(jobs.JobBulkGenerateCertificates, j.Payload)

		if err != nil {
			return err
		}

		payload := decoded.(jobs.BulkGenerateCertificatesPayload)

		if err := jobs.ValidatePayload(jobs.JobBulkGenerateCertificates, payload); err != nil {
			return err
		}

		sum, err := bulk.Run(ctx, j.ID, payload)

		if err != nil {
			return err
		}

		log.InfoContext(ctx, "bulk.summary",
			"job_id", j.ID,
			"attempted", sum.TotalAttempted,
			"succeeded", sum.TotalSucceeded,
		)

		return nil
	})

	w.Register(jobs.JobGenerateCertificate, func(ctx context.Context, j job.Job) error {
		decoded, err := jobs.DecodePayload(jobs.JobGenerateCertificate, j.Payload)

		if err != nil {
			return err
		}

		payload := decoded.(jobs.GenerateCertificatePayload)

		if err := jobs.ValidatePayload(jobs.JobGenerateCertificate, payload); err != nil {
			return err
		}

		_, err = issuer.Issue(ctx, payload.ParticipantID, payload.TemplateID)

		return err
	})

	// health + metrics sidecar server

	mux := http.NewServeMux()
	mux.Handle("/", w.HealthHandler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := healthSrv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker started",
		"concurrency", cfg.WorkerConcurrency,
		"poll_interval", cfg.WorkerPollInterval.String(),
	)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	_ = healthSrv.Shutdown(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)

	log.Info("worker shutdown complete")
}
