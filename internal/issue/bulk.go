package issue

import (
	"context"
	"log/slog"

	"github.com/geocoder89/certhub/internal/jobs"
	"github.com/geocoder89/certhub/internal/observability"
)

// Summary is what a finished bulk run reports back to the job record.
type Summary struct {
	TotalAttempted          int      `json:"totalAttempted"`
	TotalSucceeded          int      `json:"totalSucceeded"`
	SucceededCertificateIDs []string `json:"succeededCertificateIds"`
}

// ProgressReporter receives per-participant progress while a bulk run is
// in flight. Implementations must be cheap; they sit on the hot path.
type ProgressReporter interface {
	Report(ctx context.Context, jobID string, attempted, succeeded int)
}

// Bulk fans a bulk job out to the single-issuance service, one
// participant at a time. A participant failure is logged and counted,
// never propagated: one bad row must not sink the batch.
type Bulk struct {
	issuer   *Service
	progress ProgressReporter
	log      *slog.Logger
	metrics  *observability.JobMetrics
}

func NewBulk(issuer *Service, progress ProgressReporter, log *slog.Logger, metrics *observability.JobMetrics) *Bulk {
	if log == nil {
		log = slog.Default()
	}

	return &Bulk{
		issuer:   issuer,
		progress: progress,
		log:      log,
		metrics:  metrics,
	}
}

func (b *Bulk) Run(ctx context.Context, jobID string, payload jobs.BulkGenerateCertificatesPayload) (Summary, error) {
	sum := Summary{SucceededCertificateIDs: []string{}}

	for _, pid := range payload.ParticipantIDs {
		if err := ctx.Err(); err != nil {
			// shutdown mid-batch: report what we have, let the job retry
			return sum, err
		}

		sum.TotalAttempted++

		cert, err := b.issuer.Issue(ctx, pid, payload.TemplateID)

		if err != nil {
			if b.metrics != nil {
				b.metrics.IncIssueFailure()
			}

			b.log.ErrorContext(ctx, "bulk.participant_failed",
				"job_id", jobID,
				"event_id", payload.EventID,
				"participant_id", pid,
				"err", err,
			)
		} else {
			if b.metrics != nil {
				b.metrics.IncIssued()
			}

			sum.TotalSucceeded++
			sum.SucceededCertificateIDs = append(sum.SucceededCertificateIDs, cert.ID)
		}

		b.report(ctx, jobID, sum)
	}

	b.log.InfoContext(ctx, "bulk.finished",
		"job_id", jobID,
		"event_id", payload.EventID,
		"attempted", sum.TotalAttempted,
		"succeeded", sum.TotalSucceeded,
	)

	return sum, nil
}

func (b *Bulk) report(ctx context.Context, jobID string, sum Summary) {
	if b.progress == nil {
		return
	}
	b.progress.Report(ctx, jobID, sum.TotalAttempted, sum.TotalSucceeded)
}
