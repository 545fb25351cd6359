package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics is the in-process counter set the worker dumps into its
// heartbeat log line; the prometheus vectors cover scraping.
type JobMetrics struct {
	claimed atomic.Uint64
	done    atomic.Uint64
	failed  atomic.Uint64
	retried atomic.Uint64

	// per-participant issuance outcomes inside bulk jobs
	issued        atomic.Uint64
	issueFailures atomic.Uint64

	// duration stats (nanoseconds)
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed() { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()    { m.done.Add(1) }
func (m *JobMetrics) IncFailed()  { m.failed.Add(1) }
func (m *JobMetrics) IncRetried() { m.retried.Add(1) }

func (m *JobMetrics) IncIssued()       { m.issued.Add(1) }
func (m *JobMetrics) IncIssueFailure() { m.issueFailures.Add(1) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	// max update

	for {
		curr := m.durationMax.Load()

		if ns <= curr {
			return
		}

		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapshot struct {
	Claimed         uint64
	Done            uint64
	Failed          uint64
	Retried         uint64
	Issued          uint64
	IssueFailures   uint64
	DurationCount   uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()
	max := m.durationMax.Load()

	var avg time.Duration

	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return JobMetricsSnapshot{
		Claimed:         m.claimed.Load(),
		Done:            m.done.Load(),
		Failed:          m.failed.Load(),
		Retried:         m.retried.Load(),
		Issued:          m.issued.Load(),
		IssueFailures:   m.issueFailures.Load(),
		DurationCount:   count,
		AverageDuration: avg,
		MaxDuration:     time.Duration(max),
	}
}
