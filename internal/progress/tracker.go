package progress

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bulkcert:progress:"

// DefaultTTL keeps progress hashes around long enough for a client to
// poll a finished job, without leaking keys forever.
const DefaultTTL = 24 * time.Hour

// Snapshot is the live counter pair for one bulk job. Best-effort data:
// absent in redis means the job never started or the key expired.
type Snapshot struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
}

// Tracker writes bulk-run progress into a redis hash per job so the
// status endpoint can show movement before the job record is final.
type Tracker struct {
	redisdb *redis.Client
	ttl     time.Duration
	log     *slog.Logger
}

func NewTracker(redisdb *redis.Client, ttl time.Duration, log *slog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if log == nil {
		log = slog.Default()
	}

	return &Tracker{redisdb: redisdb, ttl: ttl, log: log}
}

func key(jobID string) string {
	return keyPrefix + jobID
}

// Report overwrites the counters for jobID. Failures are logged and
// swallowed: progress is advisory, issuance must not depend on redis.
func (t *Tracker) Report(ctx context.Context, jobID string, attempted, succeeded int) {
	if t.redisdb == nil {
		return
	}

	k := key(jobID)

	pipe := t.redisdb.Pipeline()
	pipe.HSet(ctx, k,
		"attempted", attempted,
		"succeeded", succeeded,
	)
	pipe.Expire(ctx, k, t.ttl)

	_, err := pipe.Exec(ctx)

	if err != nil {
		t.log.WarnContext(ctx, "progress.report_failed", "job_id", jobID, "err", err)
	}
}

// Get returns the current counters, or ok=false when nothing was
// recorded (or redis is unreachable).
func (t *Tracker) Get(ctx context.Context, jobID string) (Snapshot, bool) {
	if t.redisdb == nil {
		return Snapshot{}, false
	}

	vals, err := t.redisdb.HGetAll(ctx, key(jobID)).Result()

	if err != nil {
		t.log.WarnContext(ctx, "progress.read_failed", "job_id", jobID, "err", err)
		return Snapshot{}, false
	}

	if len(vals) == 0 {
		return Snapshot{}, false
	}

	var snap Snapshot
	snap.Attempted, _ = strconv.Atoi(vals["attempted"])
	snap.Succeeded, _ = strconv.Atoi(vals["succeeded"])

	return snap, true
}
