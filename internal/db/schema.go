package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Bootstrap creates the tables this service owns. participants, users
// and events belong to the registration service and are only read here.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS certificate_templates (
			id           UUID PRIMARY KEY,
			name         TEXT NOT NULL,
			file_path    TEXT NOT NULL,
			content_type TEXT NOT NULL,
			version      INT  NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (name, version)
		)`,
		`CREATE TABLE IF NOT EXISTS certificates (
			id               UUID PRIMARY KEY,
			user_id          UUID NOT NULL,
			event_id         UUID NOT NULL,
			certificate_path TEXT NOT NULL UNIQUE,
			issued_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_user ON certificates (user_id, issued_at DESC)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id              UUID PRIMARY KEY,
			type            TEXT NOT NULL,
			payload         JSONB NOT NULL,
			status          TEXT NOT NULL,
			attempts        INT NOT NULL DEFAULT 0,
			max_attempts    INT NOT NULL DEFAULT 5,
			run_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			locked_at       TIMESTAMPTZ,
			locked_by       TEXT,
			last_error      TEXT,
			idempotency_key TEXT,
			priority        INT NOT NULL DEFAULT 0,
			user_id         UUID,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_idem_active
			ON jobs (idempotency_key)
			WHERE idempotency_key IS NOT NULL AND status IN ('pending','processing')`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs (status, run_at) WHERE status = 'pending'`,
	}

	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)

		if err != nil {
			return err
		}
	}

	return nil
}
