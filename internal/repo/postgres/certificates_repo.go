package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/certhub/internal/domain/certificate"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CertificatesRepo is append-only from this service's point of view:
// rows are inserted after an artifact lands on disk and never touched again.
type CertificatesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewCertificatesRepo(pool *pgxpool.Pool, prom *observability.Prom) *CertificatesRepo {
	return &CertificatesRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *CertificatesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *CertificatesRepo) Insert(ctx context.Context, req certificate.CreateRequest) (certificate.Certificate, error) {
	c := certificate.NewFromCreateRequest(req)

	err := r.observe("certificates.insert", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO certificates(id, user_id, event_id, certificate_path, issued_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.UserID, c.EventID, c.CertificatePath, c.IssuedAt)

		return err
	})

	if err != nil {
		return certificate.Certificate{}, err
	}

	return c, nil
}

func (r *CertificatesRepo) GetByID(ctx context.Context, id string) (certificate.Certificate, error) {
	var c certificate.Certificate

	err := r.observe("certificates.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, user_id, event_id, certificate_path, issued_at
		FROM certificates
		WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.EventID, &c.CertificatePath, &c.IssuedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return certificate.Certificate{}, certificate.ErrNotFound
		}
		return certificate.Certificate{}, err
	}

	return c, nil
}

func (r *CertificatesRepo) ListByUser(ctx context.Context, userID string) ([]certificate.Certificate, error) {
	var out []certificate.Certificate

	err := r.observe("certificates.list_by_user", func() error {
		rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, event_id, certificate_path, issued_at
		FROM certificates
		WHERE user_id = $1
		ORDER BY issued_at DESC
	`, userID)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]certificate.Certificate, 0)

		for rows.Next() {
			var c certificate.Certificate

			err = rows.Scan(&c.ID, &c.UserID, &c.EventID, &c.CertificatePath, &c.IssuedAt)

			if err != nil {
				return err
			}

			out = append(out, c)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}
