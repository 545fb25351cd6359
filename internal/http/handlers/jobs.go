package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/certhub/internal/actorctx"
	"github.com/geocoder89/certhub/internal/config"
	"github.com/geocoder89/certhub/internal/domain/job"
	"github.com/geocoder89/certhub/internal/http/middlewares"
	"github.com/geocoder89/certhub/internal/jobs"
	"github.com/geocoder89/certhub/internal/progress"
	"github.com/geocoder89/certhub/internal/repo/postgres"
	"github.com/geocoder89/certhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type JobsCreator interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByID(ctx context.Context, id string) (job.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error)
}

type ParticipantLister interface {
	ListIDsByEvent(ctx context.Context, eventID string) ([]string, error)
}

type ProgressReader interface {
	Get(ctx context.Context, jobID string) (progress.Snapshot, bool)
}

type JobsHandler struct {
	jobs         JobsCreator
	participants ParticipantLister
	progress     ProgressReader
}

func NewJobsHandler(jobsRepo JobsCreator, participants ParticipantLister, prog ProgressReader) *JobsHandler {
	return &JobsHandler{
		jobs:         jobsRepo,
		participants: participants,
		progress:     prog,
	}
}

// optional JSON body for the bulk trigger
type bulkEnqueueRequest struct {
	TemplateID *string `json:"templateId" binding:"omitempty,uuid4"`
	RunAt      *string `json:"runAt" binding:"omitempty"`
}

// POST /admin/events/:id/certificates/bulk

func (h *JobsHandler) EnqueueBulk(ctx *gin.Context) {
	eventID := ctx.Param("id")

	if !utils.IsUUID(eventID) {
		RespondBadRequest(ctx, "invalid_event_id", nil)
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	runAt := time.Now().UTC()

	var body bulkEnqueueRequest

	if ctx.Request.ContentLength > 0 {
		if !BindJSON(ctx, &body) {
			return
		}

		if body.RunAt != nil && *body.RunAt != "" {
			t, err := time.Parse(time.RFC3339, *body.RunAt)

			if err != nil {
				RespondBadRequest(ctx, "runAt must be an RFC 3339 datetime", nil)
				return
			}

			// allow slight clock drift but reject clearly-in-the-past schedules
			if t.Before(time.Now().UTC().Add(-30 * time.Second)) {
				RespondBadRequest(ctx, "runAt must be now or in the future", nil)
				return
			}

			runAt = t.UTC()
		}
	}

	templateID := body.TemplateID

	if templateID == nil {
		if tid := ctx.Query("templateId"); tid != "" {
			if !utils.IsUUID(tid) {
				RespondBadRequest(ctx, "invalid_template_id", nil)
				return
			}
			templateID = &tid
		}
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	cctx = actorctx.WithUserID(cctx, userID)

	// snapshot the roster now; the batch stays stable while queued
	participantIDs, err := h.participants.ListIDsByEvent(cctx, eventID)

	if err != nil {
		RespondInternal(ctx, "Could not enqueue job")
		return
	}

	payload := jobs.BulkGenerateCertificatesPayload{
		EventID:        eventID,
		TemplateID:     templateID,
		ParticipantIDs: participantIDs,
		ActorID:        userID,
		RequestID:      requestIDFrom(ctx),
	}

	raw, err := jobs.EncodePayload(jobs.JobBulkGenerateCertificates, payload)

	if err != nil {
		RespondInternal(ctx, "Could not enqueue job")
		return
	}

	key := "bulkcert:event:" + eventID

	j, err := h.jobs.Create(cctx, job.CreateRequest{
		Type:           string(jobs.JobBulkGenerateCertificates),
		Payload:        json.RawMessage(raw),
		RunAt:          runAt,
		MaxAttempts:    5,
		IdempotencyKey: &key,
		UserID:         &userID,
	})

	if err != nil {
		if postgres.IsUniqueViolation(err) {
			existing, gerr := h.jobs.GetByIdempotencyKey(cctx, key)

			if gerr != nil {
				RespondInternal(ctx, "Could not enqueue job")
				return
			}

			ctx.JSON(http.StatusAccepted, gin.H{
				"jobId":           existing.ID,
				"status":          existing.Status,
				"type":            existing.Type,
				"alreadyEnqueued": true,
			})
			ctx.Set(middlewares.CtxJobID, existing.ID)
			slog.Default().InfoContext(cctx, "job.enqueue",
				"request_id", requestIDFrom(ctx),
				"job_id", existing.ID,
				"job_type", existing.Type,
				"already_enqueued", true,
			)

			return
		}

		RespondInternal(ctx, "Could not enqueue job")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{
		"jobId":        j.ID,
		"status":       j.Status,
		"type":         j.Type,
		"participants": len(participantIDs),
	})
	ctx.Set(middlewares.CtxJobID, j.ID)
	slog.Default().InfoContext(cctx, "job.enqueue",
		"request_id", requestIDFrom(ctx),
		"job_id", j.ID,
		"job_type", j.Type,
		"participants", len(participantIDs),
		"already_enqueued", false,
	)
}

// GET /admin/certificates/jobs/:id — job record plus live progress while
// a bulk run is in flight.

func (h *JobsHandler) GetStatus(ctx *gin.Context) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxJobID, id)

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "invalid_id", nil)
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	j, err := h.jobs.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			RespondNotFound(ctx, "Job not found")
			return
		}

		RespondInternal(ctx, "Could not fetch job")
		return
	}

	resp := gin.H{"job": j}

	if h.progress != nil {
		if snap, ok := h.progress.Get(cctx, j.ID); ok {
			resp["progress"] = snap
		}
	}

	ctx.JSON(http.StatusOK, resp)
}
