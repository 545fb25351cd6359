package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TemplatesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTemplatesRepo(pool *pgxpool.Pool, prom *observability.Prom) *TemplatesRepo {
	return &TemplatesRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *TemplatesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// Create inserts the row and assigns version = 1 + current max for the
// name, in the same statement so concurrent uploads for one name cannot
// both read the same max.
func (r *TemplatesRepo) Create(ctx context.Context, req template.CreateRequest) (template.Template, error) {
	t := template.NewFromCreateRequest(req)

	err := r.observe("templates.create", func() error {
		return r.pool.QueryRow(ctx, `
		INSERT INTO certificate_templates(id, name, file_path, content_type, version, created_at)
		VALUES (
			$1, $2, $3, $4,
			1 + COALESCE((SELECT MAX(version) FROM certificate_templates WHERE name = $2), 0),
			$5
		)
		RETURNING version
	`, t.ID, t.Name, t.FilePath, string(t.ContentType), t.CreatedAt).Scan(&t.Version)
	})

	if err != nil {
		return template.Template{}, err
	}

	return t, nil
}

func (r *TemplatesRepo) GetByID(ctx context.Context, id string) (template.Template, error) {
	var t template.Template
	var cType string

	err := r.observe("templates.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, name, file_path, content_type, version, created_at
		FROM certificate_templates
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.FilePath, &cType, &t.Version, &t.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return template.Template{}, template.ErrNotFound
		}
		return template.Template{}, err
	}

	t.ContentType = template.ContentType(cType)
	return t, nil
}

// List returns the whole catalog, newest first.
func (r *TemplatesRepo) List(ctx context.Context) ([]template.Template, error) {
	var out []template.Template

	err := r.observe("templates.list", func() error {
		rows, err := r.pool.Query(ctx, `
		SELECT id, name, file_path, content_type, version, created_at
		FROM certificate_templates
		ORDER BY created_at DESC, id DESC
	`)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]template.Template, 0)

		for rows.Next() {
			var t template.Template
			var cType string

			err = rows.Scan(&t.ID, &t.Name, &t.FilePath, &cType, &t.Version, &t.CreatedAt)

			if err != nil {
				return err
			}

			t.ContentType = template.ContentType(cType)
			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Delete removes the catalog row and hands the deleted row back so the
// caller can attempt the (best-effort) file cleanup.
func (r *TemplatesRepo) Delete(ctx context.Context, id string) (template.Template, error) {
	var t template.Template
	var cType string

	err := r.observe("templates.delete", func() error {
		return r.pool.QueryRow(ctx, `
		DELETE FROM certificate_templates
		WHERE id = $1
		RETURNING id, name, file_path, content_type, version, created_at
	`, id).Scan(&t.ID, &t.Name, &t.FilePath, &cType, &t.Version, &t.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return template.Template{}, template.ErrNotFound
		}
		return template.Template{}, err
	}

	t.ContentType = template.ContentType(cType)
	return t, nil
}

// Latest resolves the newest template: max version for a name when a name
// filter is given, otherwise the most recently created row overall.
// No rows at all is template.ErrNotFound — the caller renders the fallback.
func (r *TemplatesRepo) Latest(ctx context.Context, name *string) (template.Template, error) {
	var t template.Template
	var cType string

	query := `
		SELECT id, name, file_path, content_type, version, created_at
		FROM certificate_templates
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	args := []any{}

	if name != nil {
		query = `
		SELECT id, name, file_path, content_type, version, created_at
		FROM certificate_templates
		WHERE name = $1
		ORDER BY version DESC
		LIMIT 1
	`
		args = append(args, *name)
	}

	err := r.observe("templates.latest", func() error {
		return r.pool.QueryRow(ctx, query, args...).Scan(&t.ID, &t.Name, &t.FilePath, &cType, &t.Version, &t.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return template.Template{}, template.ErrNotFound
		}
		return template.Template{}, err
	}

	t.ContentType = template.ContentType(cType)
	return t, nil
}
