package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/certhub/internal/auth"
	"github.com/geocoder89/certhub/internal/domain/job"
	"github.com/geocoder89/certhub/internal/http/handlers"
	"github.com/geocoder89/certhub/internal/http/middlewares"
	"github.com/geocoder89/certhub/internal/jobs"
	"github.com/geocoder89/certhub/internal/progress"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeJobsCreator struct {
	createFn   func(ctx context.Context, req job.CreateRequest) (job.Job, error)
	getFn      func(ctx context.Context, id string) (job.Job, error)
	getByKeyFn func(ctx context.Context, key string) (job.Job, error)

	lastCreate job.CreateRequest
}

func (f *fakeJobsCreator) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	f.lastCreate = req

	if f.createFn != nil {
		return f.createFn(ctx, req)
	}
	return job.New(req), nil
}

func (f *fakeJobsCreator) GetByID(ctx context.Context, id string) (job.Job, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return job.Job{}, job.ErrJobNotFound
}

func (f *fakeJobsCreator) GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error) {
	if f.getByKeyFn != nil {
		return f.getByKeyFn(ctx, key)
	}
	return job.Job{}, job.ErrJobNotFound
}

type fakeParticipantLister struct {
	listFn func(ctx context.Context, eventID string) ([]string, error)
}

func (f *fakeParticipantLister) ListIDsByEvent(ctx context.Context, eventID string) ([]string, error) {
	if f.listFn != nil {
		return f.listFn(ctx, eventID)
	}
	return []string{}, nil
}

type fakeProgressReader struct {
	getFn func(ctx context.Context, jobID string) (progress.Snapshot, bool)
}

func (f *fakeProgressReader) Get(ctx context.Context, jobID string) (progress.Snapshot, bool) {
	if f.getFn != nil {
		return f.getFn(ctx, jobID)
	}
	return progress.Snapshot{}, false
}

func jobsRouter(h *handlers.JobsHandler, mgr *auth.Manager) *gin.Engine {
	authMW := middlewares.NewAuthMiddleware(mgr)

	r := gin.New()
	r.POST("/admin/events/:id/certificates/bulk", authMW.RequireAuth(), h.EnqueueBulk)
	r.GET("/admin/certificates/jobs/:id", authMW.RequireAuth(), h.GetStatus)
	return r
}

func adminToken(t *testing.T, mgr *auth.Manager, userID string) string {
	t.Helper()

	token, err := mgr.GenerateAccessToken(userID, "admin@example.org", "admin")

	if err != nil {
		t.Fatal(err)
	}

	return token
}

func TestEnqueueBulkSnapshotsRoster(t *testing.T) {
	eventID := newUUID()
	adminID := newUUID()
	roster := []string{newUUID(), newUUID(), newUUID()}

	creator := &fakeJobsCreator{}
	lister := &fakeParticipantLister{
		listFn: func(ctx context.Context, gotEvent string) ([]string, error) {
			if gotEvent != eventID {
				t.Errorf("listed event %s, want %s", gotEvent, eventID)
			}
			return roster, nil
		},
	}

	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(creator, lister, &fakeProgressReader{})
	r := jobsRouter(h, mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/events/"+eventID+"/certificates/bulk", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, adminID))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID        string `json:"jobId"`
		Status       string `json:"status"`
		Participants int    `json:"participants"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	if resp.Status != string(job.StatusPending) || resp.Participants != 3 || resp.JobID == "" {
		t.Errorf("resp = %+v", resp)
	}

	if creator.lastCreate.IdempotencyKey == nil || *creator.lastCreate.IdempotencyKey != "bulkcert:event:"+eventID {
		t.Errorf("idempotency key = %v", creator.lastCreate.IdempotencyKey)
	}

	decoded, err := jobs.DecodePayload(jobs.JobBulkGenerateCertificates, creator.lastCreate.Payload)

	if err != nil {
		t.Fatal(err)
	}

	payload, ok := decoded.(jobs.BulkGenerateCertificatesPayload)

	if !ok {
		t.Fatalf("payload type %T", decoded)
	}

	if payload.EventID != eventID || len(payload.ParticipantIDs) != 3 || payload.ActorID != adminID {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEnqueueBulkInvalidEventID(t *testing.T) {
	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(&fakeJobsCreator{}, &fakeParticipantLister{}, &fakeProgressReader{})
	r := jobsRouter(h, mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/events/not-a-uuid/certificates/bulk", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, newUUID()))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestEnqueueBulkRejectsPastRunAt(t *testing.T) {
	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(&fakeJobsCreator{}, &fakeParticipantLister{}, &fakeProgressReader{})
	r := jobsRouter(h, mgr)

	body := `{"runAt":"` + time.Now().UTC().Add(-time.Hour).Format(time.RFC3339) + `"}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/events/"+newUUID()+"/certificates/bulk", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, newUUID()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestEnqueueBulkDuplicateWhileQueued(t *testing.T) {
	eventID := newUUID()
	existing := job.Job{
		ID:     newUUID(),
		Type:   string(jobs.JobBulkGenerateCertificates),
		Status: job.StatusPending,
	}

	creator := &fakeJobsCreator{
		createFn: func(ctx context.Context, req job.CreateRequest) (job.Job, error) {
			return job.Job{}, &pgconn.PgError{Code: "23505", ConstraintName: "idx_jobs_idem_active"}
		},
		getByKeyFn: func(ctx context.Context, key string) (job.Job, error) {
			if key != "bulkcert:event:"+eventID {
				t.Errorf("looked up key %s", key)
			}
			return existing, nil
		},
	}

	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(creator, &fakeParticipantLister{}, &fakeProgressReader{})
	r := jobsRouter(h, mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/events/"+eventID+"/certificates/bulk", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, newUUID()))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		JobID           string `json:"jobId"`
		AlreadyEnqueued bool   `json:"alreadyEnqueued"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	if !resp.AlreadyEnqueued || resp.JobID != existing.ID {
		t.Errorf("resp = %+v, want the queued job echoed back", resp)
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(&fakeJobsCreator{}, &fakeParticipantLister{}, &fakeProgressReader{})
	r := jobsRouter(h, mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/certificates/jobs/"+newUUID(), nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, newUUID()))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetStatusMergesProgress(t *testing.T) {
	jobID := newUUID()

	creator := &fakeJobsCreator{
		getFn: func(ctx context.Context, id string) (job.Job, error) {
			return job.Job{ID: jobID, Type: string(jobs.JobBulkGenerateCertificates), Status: job.StatusProcessing}, nil
		},
	}
	prog := &fakeProgressReader{
		getFn: func(ctx context.Context, id string) (progress.Snapshot, bool) {
			return progress.Snapshot{Attempted: 40, Succeeded: 38}, true
		},
	}

	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(creator, &fakeParticipantLister{}, prog)
	r := jobsRouter(h, mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/certificates/jobs/"+jobID, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, newUUID()))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Job      job.Job            `json:"job"`
		Progress *progress.Snapshot `json:"progress"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	if resp.Job.ID != jobID {
		t.Errorf("job id = %s", resp.Job.ID)
	}

	if resp.Progress == nil || resp.Progress.Attempted != 40 || resp.Progress.Succeeded != 38 {
		t.Errorf("progress = %+v", resp.Progress)
	}
}

func TestGetStatusWithoutProgressHash(t *testing.T) {
	jobID := newUUID()

	creator := &fakeJobsCreator{
		getFn: func(ctx context.Context, id string) (job.Job, error) {
			return job.Job{ID: jobID, Status: job.StatusDone}, nil
		},
	}

	mgr := auth.NewManager("test-secret", time.Minute)
	h := handlers.NewJobsHandler(creator, &fakeParticipantLister{}, &fakeProgressReader{})
	r := jobsRouter(h, mgr)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/certificates/jobs/"+jobID, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, mgr, newUUID()))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if strings.Contains(w.Body.String(), `"progress"`) {
		t.Errorf("expired or absent hash must not appear in the response: %s", w.Body.String())
	}
}
