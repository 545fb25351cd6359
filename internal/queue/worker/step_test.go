package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/certhub/internal/domain/job"
	"github.com/geocoder89/certhub/internal/jobs"
)

type fakeJobsRepo struct {
	claimFn      func(ctx context.Context, workerID string) (job.Job, error)
	markDoneFn   func(ctx context.Context, id string) error
	markFailedFn func(ctx context.Context, id string, errMsg string) error
	rescheduleFn func(ctx context.Context, id string, runAt time.Time, errMsg string) error

	doneIDs    []string
	failedIDs  []string
	resched    []time.Time
	lastErrMsg string
}

func (f *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, workerID)
	}
	return job.Job{}, job.ErrJobNotFound
}

func (f *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	f.doneIDs = append(f.doneIDs, id)

	if f.markDoneFn != nil {
		return f.markDoneFn(ctx, id)
	}
	return nil
}

func (f *fakeJobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.failedIDs = append(f.failedIDs, id)
	f.lastErrMsg = errMsg

	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, errMsg)
	}
	return nil
}

func (f *fakeJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	f.resched = append(f.resched, runAt)
	f.lastErrMsg = errMsg

	if f.rescheduleFn != nil {
		return f.rescheduleFn(ctx, id, runAt, errMsg)
	}
	return nil
}

func (f *fakeJobsRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	return 0, nil
}

func claimedJob(attempts, maxAttempts int) job.Job {
	return job.Job{
		ID:          "job-1",
		Type:        string(jobs.JobBulkGenerateCertificates),
		Payload:     json.RawMessage(`{"eventId":"e-1","participantIds":[]}`),
		Status:      job.StatusProcessing,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func TestProcessOneEmptyQueue(t *testing.T) {
	w := New(Config{}, &fakeJobsRepo{}, nil, nil)

	processed, err := w.ProcessOne(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if processed {
		t.Fatalf("nothing to process, got processed=true")
	}
}

func TestProcessOneSuccessMarksDone(t *testing.T) {
	repo := &fakeJobsRepo{
		claimFn: func(ctx context.Context, workerID string) (job.Job, error) {
			return claimedJob(0, 5), nil
		},
	}

	w := New(Config{}, repo, nil, nil)

	var handled bool

	w.Register(jobs.JobBulkGenerateCertificates, func(ctx context.Context, j job.Job) error {
		handled = true
		return nil
	})

	processed, err := w.ProcessOne(context.Background())

	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	if !handled {
		t.Fatalf("handler never ran")
	}

	if len(repo.doneIDs) != 1 || repo.doneIDs[0] != "job-1" {
		t.Errorf("doneIDs = %v", repo.doneIDs)
	}

	if len(repo.failedIDs) != 0 || len(repo.resched) != 0 {
		t.Errorf("success path must not fail or reschedule")
	}

	if got := w.Metrics().Snapshot(); got.Done != 1 || got.Claimed != 1 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestProcessOneHandlerErrorReschedulesWithBackoff(t *testing.T) {
	repo := &fakeJobsRepo{
		claimFn: func(ctx context.Context, workerID string) (job.Job, error) {
			return claimedJob(1, 5), nil
		},
	}

	w := New(Config{}, repo, nil, nil)

	w.Register(jobs.JobBulkGenerateCertificates, func(ctx context.Context, j job.Job) error {
		return errors.New("transient db error")
	})

	before := time.Now()
	processed, err := w.ProcessOne(context.Background())

	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	if len(repo.resched) != 1 {
		t.Fatalf("resched = %v, want one entry", repo.resched)
	}

	// attempt=1 backoff is 4s plus jitter
	delay := repo.resched[0].Sub(before)

	if delay < 4*time.Second || delay > 5*time.Second {
		t.Errorf("backoff delay = %v, want ~4s", delay)
	}

	if repo.lastErrMsg != "transient db error" {
		t.Errorf("lastErrMsg = %q", repo.lastErrMsg)
	}

	if got := w.Metrics().Snapshot(); got.Retried != 1 || got.Failed != 0 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestProcessOneExhaustedAttemptsMarksFailed(t *testing.T) {
	repo := &fakeJobsRepo{
		claimFn: func(ctx context.Context, workerID string) (job.Job, error) {
			return claimedJob(4, 5), nil
		},
	}

	w := New(Config{}, repo, nil, nil)

	w.Register(jobs.JobBulkGenerateCertificates, func(ctx context.Context, j job.Job) error {
		return errors.New("still broken")
	})

	processed, err := w.ProcessOne(context.Background())

	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	if len(repo.failedIDs) != 1 {
		t.Fatalf("failedIDs = %v, want job-1", repo.failedIDs)
	}

	if len(repo.resched) != 0 {
		t.Errorf("dead job must not be rescheduled")
	}

	if got := w.Metrics().Snapshot(); got.Failed != 1 {
		t.Errorf("metrics = %+v", got)
	}
}

func TestProcessOneUnknownJobTypeFails(t *testing.T) {
	repo := &fakeJobsRepo{
		claimFn: func(ctx context.Context, workerID string) (job.Job, error) {
			j := claimedJob(4, 5)
			j.Type = "mystery"
			return j, nil
		},
	}

	w := New(Config{}, repo, nil, nil)

	processed, err := w.ProcessOne(context.Background())

	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	if len(repo.failedIDs) != 1 {
		t.Fatalf("unregistered type must hit the failure path, got %v", repo.failedIDs)
	}
}

func TestExponentialBackoffCapsAndGrows(t *testing.T) {
	prev := time.Duration(0)

	for attempt := 0; attempt < 6; attempt++ {
		d := ExponentialBackoff(attempt)

		if d < prev {
			t.Errorf("backoff shrank at attempt %d: %v < %v", attempt, d, prev)
		}

		prev = d - 250*time.Millisecond // strip max jitter before comparing
	}

	if d := ExponentialBackoff(30); d > 5*time.Minute+250*time.Millisecond {
		t.Errorf("backoff exceeded cap: %v", d)
	}
}
