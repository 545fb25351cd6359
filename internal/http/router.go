package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/certhub/internal/auth"
	"github.com/geocoder89/certhub/internal/cache"
	"github.com/geocoder89/certhub/internal/config"
	"github.com/geocoder89/certhub/internal/http/handlers"
	"github.com/geocoder89/certhub/internal/http/middlewares"
	"github.com/geocoder89/certhub/internal/issue"
	"github.com/geocoder89/certhub/internal/notifications"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/geocoder89/certhub/internal/progress"
	"github.com/geocoder89/certhub/internal/render"
	"github.com/geocoder89/certhub/internal/repo/postgres"
	"github.com/geocoder89/certhub/internal/storage"
	"github.com/geocoder89/certhub/internal/templates"
)

// NewRouter wires the full API surface: template catalog, issuance,
// bulk jobs, downloads.
func NewRouter(
	cfg config.Config,
	log *slog.Logger,
	pool *pgxpool.Pool,
	prom *observability.Prom,
	reg *prometheus.Registry,
	progressReader *progress.Tracker,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(otelgin.Middleware("certhub-api"))
	r.Use(prom.GinHandleMiddleware())

	// health + metrics

	health := handlers.NewHealthHandler(pool)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// wiring

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

	templatesHandler := handlers.NewTemplatesHandler(store, root)
	certsHandler := handlers.NewCertificatesHandler(issuer, certsRepo, root)
	jobsHandler := handlers.NewJobsHandler(jobsRepo, participantsRepo, progressReader)
	adminJobsHandler := handlers.NewAdminJobsHandler(jobsRepo)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL)
	authMw := middlewares.NewAuthMiddleware(jwtManager)

	bulkLimiter := middlewares.NewRateLimiter(5, time.Minute)

	// authenticated user surface

	user := r.Group("/certificates", authMw.RequireAuth())
	{
		user.GET("/my", certsHandler.ListMine)
		user.GET("/:id/download", certsHandler.DownloadOwn)
	}

	// admin surface

	admin := r.Group("/admin", authMw.RequireAuth(), authMw.RequireRole("admin"))
	{
		tpl := admin.Group("/certificates/templates")
		tpl.POST("", middlewares.MaxBodyBytes(6<<20), templatesHandler.Upload)
		tpl.GET("", templatesHandler.List)
		tpl.GET("/:id", templatesHandler.GetByID)
		tpl.DELETE("/:id", templatesHandler.Delete)

		admin.POST("/certificates/generate/:participantId", certsHandler.Generate)
		admin.GET("/certificates/:id/download", certsHandler.Download)
		admin.GET("/certificates", certsHandler.ListByUser)

		admin.POST("/events/:id/certificates/bulk",
			bulkLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
			jobsHandler.EnqueueBulk,
		)

		admin.GET("/certificates/jobs/:id", jobsHandler.GetStatus)
		admin.GET("/certificates/jobs", adminJobsHandler.List)
		admin.POST("/certificates/jobs/:id/retry", adminJobsHandler.Retry)
		admin.POST("/certificates/jobs/reprocess-dead", adminJobsHandler.ReprocessDead)
	}

	return r
}
